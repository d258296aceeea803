package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
)

type Config struct {
	IsDebug *bool `yaml:"is_debug"`
	Listen  struct {
		BindIP   string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env-default:"9015"`
		TLS      bool   `yaml:"tls_enabled" env-default:"false"`
		CertFile string `yaml:"cert_file" env-default:""`
		KeyFile  string `yaml:"key_file" env-default:""`
	} `yaml:"listen"`
	Party struct {
		CountryCode string   `yaml:"country_code" env-default:"ES"`
		PartyId     string   `yaml:"party_id" env-default:"EVS"`
		Roles       []string `yaml:"roles" env-default:"CPO"`
		Name        string   `yaml:"name" env-default:"ocpinode"`
	} `yaml:"party"`
	Ocpi struct {
		ExternalUrl      string   `yaml:"external_url" env-default:"http://localhost:9015"`
		Versions         []string `yaml:"versions" env-default:"2.2.1,2.1.1"`
		RequestTimeout   int      `yaml:"request_timeout" env-default:"60"`
		NegotiationTTL   int      `yaml:"negotiation_ttl" env-default:"86400"`
		CommandTimeout   int      `yaml:"command_timeout" env-default:"60"`
		CommandRetention int      `yaml:"command_retention" env-default:"3600"`
		AllowDowngrades  bool     `yaml:"allow_downgrades" env-default:"false"`
		AllowCdrDelete   bool     `yaml:"allow_cdr_delete" env-default:"false"`
	} `yaml:"ocpi"`
	Api struct {
		BindIP   string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env-default:"9016"`
		TLS      bool   `yaml:"tls_enabled" env-default:"false"`
		CertFile string `yaml:"cert_file" env-default:""`
		KeyFile  string `yaml:"key_file" env-default:""`
	} `yaml:"api"`
	Feed struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env-default:"9018"`
	} `yaml:"feed"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env-default:"9017"`
	} `yaml:"metrics"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"localhost"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:""`
		Password string `yaml:"password" env-default:""`
		Database string `yaml:"database" env-default:"ocpinode"`
	} `yaml:"mongo"`
	Telegram struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		ApiKey  string `yaml:"api_key" env-default:""`
	} `yaml:"telegram"`
	TimeZone string `yaml:"time_zone" env-default:"UTC"`
}

var instance *Config
var once sync.Once

func GetConfig() (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading config")
		instance = &Config{}
		if err = cleanenv.ReadConfig("config.yml", instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			log.Println(desc)
			log.Println(err)
			instance = nil
		}
	})
	return instance, err
}
