package config

type AppConfig struct {
	Client ClientConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	clientCfg, err := LoadClient()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Client: clientCfg,
		Log:    logCfg,
	}, nil
}
