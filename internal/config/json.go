package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	App struct {
		KeystoreDir string `json:"keystore_dir"`
		KeyService  string `json:"key_service"`
		KeyAccount  string `json:"key_account"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Remote struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
		AuthToken      string   `json:"auth_token"`
	} `json:"remote,omitempty"`

	Workers struct {
		UploadInterval Duration `json:"upload_interval"`
		PullInterval   Duration `json:"pull_interval"`
		BatchSize      int      `json:"batch_size"`
		MaxRetries     int      `json:"max_retries"`
		BaseBackoff    Duration `json:"base_backoff"`
		LeaseTTL       Duration `json:"lease_ttl"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*Config, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &Config{
		App: App{
			KeystoreDir: jsonCfg.App.KeystoreDir,
			KeyService:  jsonCfg.App.KeyService,
			KeyAccount:  jsonCfg.App.KeyAccount,
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Remote: Remote{
			BaseURL:        jsonCfg.Remote.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.Remote.RequestTimeout),
			AuthToken:      jsonCfg.Remote.AuthToken,
		},
		Workers: Workers{
			UploadInterval: time.Duration(jsonCfg.Workers.UploadInterval),
			PullInterval:   time.Duration(jsonCfg.Workers.PullInterval),
			BatchSize:      jsonCfg.Workers.BatchSize,
			MaxRetries:     jsonCfg.Workers.MaxRetries,
			BaseBackoff:    time.Duration(jsonCfg.Workers.BaseBackoff),
			LeaseTTL:       time.Duration(jsonCfg.Workers.LeaseTTL),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
