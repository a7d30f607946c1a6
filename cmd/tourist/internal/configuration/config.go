package configuration

import "github.com/adampresley/configinator"

type Config struct {
	DSN               string `flag:"dsn" env:"DSN" default:"file:./data/phototourist.db" description:"Data source name"`
	FlickrApiKey      string `flag:"flickrapikey" env:"FLICKR_API_KEY" default:"" description:"API key for the Flickr REST API"`
	FlickrApiUrl      string `flag:"flickrapiurl" env:"FLICKR_API_URL" default:"https://www.flickr.com/services/rest/" description:"Base URL for the Flickr REST API"`
	FlickrDownloadUrl string `flag:"flickrdownloadurl" env:"FLICKR_DOWNLOAD_URL" default:"https://live.staticflickr.com" description:"Base URL for downloading Flickr images"`
	LogLevel          string `flag:"loglevel" env:"LOG_LEVEL" default:"debug" description:"The log level to use. Valid values are 'debug', 'info', 'warn', and 'error'"`
	MaxFetchWorkers   int    `flag:"mfw" env:"MAX_FETCH_WORKERS" default:"25" description:"Maximum number of concurrent image downloads"`
}

func LoadConfig() Config {
	config := Config{}
	configinator.Behold(&config)
	return config
}
