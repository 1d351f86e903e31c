package creditdesk

import (
	"time"

	"github.com/creditdesk/creditdesk-go/token"
	"github.com/gravitational/trace"
	"github.com/pelletier/go-toml"
)

// Config stores the full configuration for the creditdesk client.
type Config struct {
	API     APIConfig     `toml:"api"`
	Session SessionConfig `toml:"session"`
	Mirror  MirrorConfig  `toml:"mirror"`
}

// APIConfig holds the API endpoint options.
type APIConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`

	timeout time.Duration
}

// SessionConfig holds the paths the session machinery talks to.
type SessionConfig struct {
	EntryPath    string `toml:"entry_path"`
	IdentityPath string `toml:"identity_path"`
	RefreshPath  string `toml:"refresh_path"`
	TokenField   string `toml:"token_field"`
}

// MirrorConfig selects where the durable credential mirror lives.
type MirrorConfig struct {
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	Key       string `toml:"key"`
	SecretID  string `toml:"secret_id"`
	AWSRegion string `toml:"aws_region"`
}

// ExampleConfig is a documented configuration TOML file.
const ExampleConfig = `# Example creditdesk client configuration TOML file

[api]
url = "https://app.creditdesk.io"   # API base URL
# timeout = "10s"                   # Per-request timeout

[session]
# entry_path = "/login"             # Where unauthenticated navigation is sent
# identity_path = "/api/user"       # Identity endpoint
# refresh_path = "/api/refresh"     # Credential refresh endpoint
# token_field = "accessToken"       # JSON field carrying the new credential

[mirror]
backend = "file"                    # "file" or "aws"
dir = "/var/lib/creditdesk"         # Mirror directory (file backend)
# key = "credential"                # Mirror key name
# secret_id = "creditdesk/cred"     # Secret id (aws backend)
# aws_region = "us-east-1"          # Secret region (aws backend)
`

// LoadConfig reads the config file, initializes a new Config struct
// object, and returns it. Optionally returns an error if the file is not
// readable, or if file format is invalid.
func LoadConfig(filepath string) (*Config, error) {
	t, err := toml.LoadFile(filepath)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	conf := &Config{}
	if err := t.Unmarshal(conf); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return conf, nil
}

// CheckAndSetDefaults checks the config struct for any logical errors,
// and sets default values if some values are missing.
func (c *Config) CheckAndSetDefaults() error {
	if c.API.URL == "" {
		return trace.BadParameter("missing required value api.url")
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "10s"
	}
	timeout, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return trace.BadParameter("invalid value api.timeout: %v", err)
	}
	c.API.timeout = timeout

	if c.Session.EntryPath == "" {
		c.Session.EntryPath = "/login"
	}
	if c.Session.IdentityPath == "" {
		c.Session.IdentityPath = "/api/user"
	}
	if c.Session.RefreshPath == "" {
		c.Session.RefreshPath = "/api/refresh"
	}
	if c.Session.TokenField == "" {
		c.Session.TokenField = "accessToken"
	}

	if c.Mirror.Backend == "" {
		c.Mirror.Backend = "file"
	}
	if c.Mirror.Key == "" {
		c.Mirror.Key = "credential"
	}
	switch c.Mirror.Backend {
	case "file":
		if c.Mirror.Dir == "" {
			return trace.BadParameter("missing required value mirror.dir")
		}
	case "aws":
		if c.Mirror.SecretID == "" {
			return trace.BadParameter("missing required value mirror.secret_id")
		}
		if c.Mirror.AWSRegion == "" {
			return trace.BadParameter("missing required value mirror.aws_region")
		}
	default:
		return trace.BadParameter("unknown mirror.backend %q, expected \"file\" or \"aws\"", c.Mirror.Backend)
	}
	return nil
}

func (c *MirrorConfig) build() token.Mirror {
	if c.Backend == "aws" {
		return token.NewSecretsMirror(c.SecretID, c.AWSRegion)
	}
	return token.NewFileMirror(c.Dir, c.Key)
}
