package templates

import "os"

const configTemplate = `
host: 0.0.0.0
port: 8881
environment: dev
filesystem_type: local

runner:
  node_command: node
  node_script: ./runners/node/bench.js
  web_script: ./runners/web/bench.js
  work_dir: .
  job_timeout: 10m

db:
  driver: sqlite
  dsn: ~/.inferbench/data/main.db

# s3:
#   endpoint_url: "https://nyc3.digitaloceanspaces.com"
#   region_name: "nyc3"
#   bucket_name: "inferbench-results"
#   folder: "results"
#   vanity_url: "https://results.inferbench.dev"

# dataset:
#   repo: "inferbench/results"
#   branch: "main"
`

const envTemplate = `# Secrets loaded alongside config.yaml. Keys use the BENCH_ prefix.
# BENCH_HF_TOKEN=
# BENCH_S3_ACCESS_KEY=
# BENCH_S3_SECRET_KEY=
# BENCH_DATASET_TOKEN=
`

func GetConfigTemplate() string {
	return configTemplate
}

func WriteConfig(path string) error {
	return writeTemplate(path, GetConfigTemplate())
}

func WriteEnv(path string) error {
	return writeTemplate(path, envTemplate)
}

func writeTemplate(path string, content string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err = file.WriteString(content); err != nil {
		return err
	}

	return nil
}
