package config

import "time"

// GmailConfig represents the configuration for the Gmail mail collector
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
	User            string
	MaxResults      int
}

// ExtractionConfig represents the configuration for the extraction pass
type ExtractionConfig struct {
	DaysBack int
	Senders  map[string]string
}

// SinkConfig represents the configuration for the persistence sink
type SinkConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// ServerConfig represents the configuration for the HTTP trigger server
type ServerConfig struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// SMTPConfig represents the configuration for the SMTP ingest server
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	MaxMessageBytes int
}

// GetGmail returns the Gmail configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		CredentialsFile: c.GetString("gmail.credentials_file"),
		TokenFile:       c.GetString("gmail.token_file"),
		User:            c.GetString("gmail.user"),
		MaxResults:      c.GetInt("gmail.max_results"),
	}
}

// GetExtraction returns the extraction configuration
func (c *Config) GetExtraction() ExtractionConfig {
	return ExtractionConfig{
		DaysBack: c.GetInt("extraction.days_back"),
		Senders:  c.GetStringMapString("extraction.senders"),
	}
}

// GetSink returns the sink configuration
func (c *Config) GetSink() SinkConfig {
	return SinkConfig{
		Type:       c.GetString("sink.type"),
		SQLitePath: c.GetString("sink.sqlite_path"),
		MySQLDSN:   c.GetString("sink.mysql_dsn"),
	}
}

// GetServer returns the HTTP server configuration. Unparseable timeout
// values fall back to the defaults.
func (c *Config) GetServer() ServerConfig {
	read, err := c.GetDuration("server.read_timeout")
	if err != nil {
		read = 30 * time.Second
	}
	write, err := c.GetDuration("server.write_timeout")
	if err != nil {
		write = 10 * time.Minute
	}
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
		ReadTimeout:   read,
		WriteTimeout:  write,
	}
}

// GetSMTP returns the SMTP ingest configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:         c.GetBool("smtp.enabled"),
		ListenAddress:   c.GetString("smtp.listen_address"),
		MaxMessageBytes: c.GetInt("smtp.max_message_bytes"),
	}
}
