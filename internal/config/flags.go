package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-d database DSN (local SQLite file)
//	-r remote record store base URL
//	-keystore-dir directory for the file-backed keystore
//	-c/-config json file path with configs
//	-request-timeout remote request timeout (e.g., "30s", "1m")
//	-upload-interval queue drain interval (e.g., "1m")
//	-pull-interval remote pull interval (e.g., "5m")
//	-max-retries replication attempts before dead-lettering
func ParseFlags() *Config {
	var databaseDSN string
	var remoteBaseURL string
	var keystoreDir string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var uploadInterval time.Duration
	var pullInterval time.Duration
	var maxRetries int

	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.StringVar(&remoteBaseURL, "r", "", "Remote record store base URL")
	flag.StringVar(&keystoreDir, "keystore-dir", "", "Keystore directory")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 30s, 1m)")
	flag.DurationVar(&uploadInterval, "upload-interval", 0, "Queue drain interval (e.g., 1m)")
	flag.DurationVar(&pullInterval, "pull-interval", 0, "Remote pull interval (e.g., 5m)")
	flag.IntVar(&maxRetries, "max-retries", 0, "Replication attempts before dead-lettering")

	flag.Parse()

	return &Config{
		App: App{
			KeystoreDir: keystoreDir,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Remote: Remote{
			BaseURL:        remoteBaseURL,
			RequestTimeout: requestTimeout,
		},
		Workers: Workers{
			UploadInterval: uploadInterval,
			PullInterval:   pullInterval,
			MaxRetries:     maxRetries,
		},
		JSONFilePath: jsonConfigPath,
	}
}
