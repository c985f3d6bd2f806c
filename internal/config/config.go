package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "ROOMBOOK_"

type Application struct {
	Listen      string      `koanf:"listen"`
	Timezone    string      `koanf:"timezone"`
	Admins      []string    `koanf:"admins"`
	Rooms       []Room      `koanf:"rooms"`
	Provider    Provider    `koanf:"provider"`
	Aggregation Aggregation `koanf:"aggregation"`
	Directory   Directory   `koanf:"directory"`
}

type Room struct {
	Address     string `koanf:"address"`
	DisplayName string `koanf:"displayname"`
}

type Provider struct {
	// Type is "memory" or "google".
	Type   string `koanf:"type"`
	Google Google `koanf:"google"`
}

type Google struct {
	CredentialsFile string `koanf:"credentialsfile"`
	// Subject is the Workspace user impersonated through domain-wide delegation.
	Subject    string `koanf:"subject"`
	CustomerId string `koanf:"customerid"`
}

type Aggregation struct {
	MailboxTimeout time.Duration `koanf:"mailboxtimeout"`
	RequestTimeout time.Duration `koanf:"requesttimeout"`
	Workers        int           `koanf:"workers"`
}

type Directory struct {
	CacheTTL time.Duration `koanf:"cachettl"`
}

const (
	ProviderMemory = "memory"
	ProviderGoogle = "google"
)

func Defaults() Application {
	return Application{
		Listen:   ":8181",
		Timezone: "Asia/Kolkata",
		Provider: Provider{
			Type: ProviderMemory,
			Google: Google{
				CustomerId: "my_customer",
			},
		},
		Aggregation: Aggregation{
			MailboxTimeout: 10 * time.Second,
			RequestTimeout: 30 * time.Second,
			Workers:        8,
		},
		Directory: Directory{
			CacheTTL: 5 * time.Minute,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			// comma separated lists
			if k == "admins" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
