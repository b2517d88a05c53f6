package config

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

// Config is the domainrouter.yaml document.
type Config struct {
	Source    string `yaml:"source"`
	OutputDir string `yaml:"output_dir"`
	Workers   int    `yaml:"workers"`

	Fetch struct {
		Timeout   time.Duration `yaml:"timeout"`
		Retries   int           `yaml:"retries"`
		RetryWait time.Duration `yaml:"retry_wait"`
		MaxBytes  int64         `yaml:"max_bytes"`
	} `yaml:"fetch"`

	Engine struct {
		// 0 rejects any illegal character.
		MaxIllegalChars  int  `yaml:"max_illegal_chars"`
		CollapseNetworks bool `yaml:"collapse_networks"`
	} `yaml:"engine"`

	Outputs struct {
		Clash    bool `yaml:"clash"`
		Surge    bool `yaml:"surge"`
		Dnsmasq  bool `yaml:"dnsmasq"`
		Module   bool `yaml:"module"`
		Rulesets bool `yaml:"rulesets"`
	} `yaml:"outputs"`

	Meta struct {
		Author   string `yaml:"author"`
		Repo     string `yaml:"repo"`
		Timezone string `yaml:"timezone"`
	} `yaml:"meta"`

	Rulesets struct {
		BaseURL  string `yaml:"base_url"`
		Interval int    `yaml:"interval"`
	} `yaml:"rulesets"`

	Dnsmasq struct {
		Upstream string   `yaml:"upstream"`
		Exclude  []string `yaml:"exclude"`
	} `yaml:"dnsmasq"`

	Conf struct {
		Template  string `yaml:"template"`
		PublicURL string `yaml:"public_url"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"conf"`

	Audit struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Path   string `yaml:"path"`
	} `yaml:"audit"`

	Server struct {
		Listen            string        `yaml:"listen"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
	} `yaml:"server"`

	Log struct {
		Verbosity int    `yaml:"verbosity"`
		Format    string `yaml:"format"`
		File      string `yaml:"file"`
	} `yaml:"log"`
}

type ConfigError struct {
	AppError model.AppError
	Cause    error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Default returns the configuration used when no file is found. Decoding
// starts from it, so keys missing from the file keep these values.
func Default() *Config {
	c := &Config{}
	c.OutputDir = "dist"
	c.Workers = 10
	c.Fetch.Timeout = 15 * time.Second
	c.Fetch.Retries = 3
	c.Fetch.RetryWait = 5 * time.Second
	c.Engine.MaxIllegalChars = rules.DefaultMaxIllegalChars
	c.Engine.CollapseNetworks = true
	c.Outputs.Clash = true
	c.Outputs.Surge = true
	c.Outputs.Rulesets = true
	c.Meta.Timezone = "Asia/Shanghai"
	c.Rulesets.Interval = 21600
	c.Dnsmasq.Upstream = "119.29.29.29"
	c.Audit.Driver = "file"
	c.Server.Listen = "127.0.0.1:25500"
	c.Server.ReadHeaderTimeout = 5 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RequestTimeout = 60 * time.Second
	return c
}

// DefaultPaths lists the files Load tries when no path is given.
func DefaultPaths() []string {
	paths := []string{"domainrouter.yaml"}
	if p, err := xdg.SearchConfigFile("domainrouter/config.yaml"); err == nil {
		paths = append(paths, p)
	}
	return paths
}

// Load reads path, or the first existing DefaultPaths entry when path is
// empty. With no file at all the defaults are returned. The second result
// is the file actually read ("" for defaults).
func Load(path string) (*Config, string, error) {
	if path == "" {
		for _, p := range DefaultPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			c := Default()
			return c, "", c.Validate()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, &ConfigError{
			AppError: model.AppError{
				Code:    "CONFIG_READ_ERROR",
				Message: "读取配置文件失败",
				Stage:   "config",
				URL:     path,
			},
			Cause: err,
		}
	}
	c, err := Parse(string(data))
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.AppError.URL = path
		}
		return nil, path, err
	}
	return c, path, nil
}

// Parse decodes a config document over the defaults and validates it.
func Parse(content string) (*Config, error) {
	c := Default()
	if strings.TrimSpace(content) != "" {
		if err := yamlDecodeStrict(content, c); err != nil {
			return nil, &ConfigError{
				AppError: model.AppError{
					Code:    "CONFIG_PARSE_ERROR",
					Message: "配置 YAML 解析失败",
					Stage:   "config",
				},
				Cause: err,
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func yamlDecodeStrict(content string, out any) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}

	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func invalid(msg, snippet string, cause error) *ConfigError {
	return &ConfigError{
		AppError: model.AppError{
			Code:    "CONFIG_VALIDATE_ERROR",
			Message: msg,
			Stage:   "config",
			Snippet: snippet,
		},
		Cause: cause,
	}
}

// Validate checks ranges and enumerations. It also normalizes the dnsmasq
// exclusion list to lower case.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1 || c.Workers > 256:
		return invalid("workers 必须在 1..256 之间", fmt.Sprint(c.Workers), nil)
	case c.Fetch.Timeout <= 0:
		return invalid("fetch.timeout 必须大于 0", c.Fetch.Timeout.String(), nil)
	case c.Fetch.Retries < 1:
		return invalid("fetch.retries 必须至少为 1", fmt.Sprint(c.Fetch.Retries), nil)
	case c.Fetch.RetryWait < 0:
		return invalid("fetch.retry_wait 不能为负", c.Fetch.RetryWait.String(), nil)
	case c.Fetch.MaxBytes < 0:
		return invalid("fetch.max_bytes 不能为负", fmt.Sprint(c.Fetch.MaxBytes), nil)
	case c.Engine.MaxIllegalChars < 0:
		return invalid("engine.max_illegal_chars 不能为负", fmt.Sprint(c.Engine.MaxIllegalChars), nil)
	case c.Rulesets.Interval <= 0:
		return invalid("rulesets.interval 必须大于 0", fmt.Sprint(c.Rulesets.Interval), nil)
	case c.OutputDir == "":
		return invalid("output_dir 不能为空", "", nil)
	}

	if _, err := time.LoadLocation(c.Meta.Timezone); err != nil {
		return invalid("meta.timezone 不是合法时区", c.Meta.Timezone, err)
	}

	for key, v := range map[string]string{
		"rulesets.base_url": c.Rulesets.BaseURL,
		"conf.public_url":   c.Conf.PublicURL,
		"conf.base_url":     c.Conf.BaseURL,
	} {
		if v == "" {
			continue
		}
		if err := validateHTTPURL(v); err != nil {
			return invalid(fmt.Sprintf("%s URL 不合法", key), v, err)
		}
	}

	if c.Outputs.Dnsmasq {
		host := c.Dnsmasq.Upstream
		if h, _, ok := strings.Cut(host, "#"); ok {
			host = h
		}
		if _, err := netip.ParseAddr(host); err != nil {
			return invalid("dnsmasq.upstream 必须是 IP 地址", c.Dnsmasq.Upstream, err)
		}
	}
	for i, d := range c.Dnsmasq.Exclude {
		c.Dnsmasq.Exclude[i] = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
	}

	switch c.Audit.Driver {
	case "none", "file":
	case "sqlite3", "mysql":
		if c.Audit.DSN == "" {
			return invalid(fmt.Sprintf("audit.driver=%s 需要 audit.dsn", c.Audit.Driver), "", nil)
		}
	default:
		return invalid(fmt.Sprintf("audit.driver 不支持：%s", c.Audit.Driver), c.Audit.Driver, nil)
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return invalid(fmt.Sprintf("log.format 不支持：%s", c.Log.Format), c.Log.Format, nil)
	}

	if c.Server.Listen == "" {
		return invalid("server.listen 不能为空", "", nil)
	}
	if c.Server.ReadHeaderTimeout <= 0 || c.Server.ShutdownTimeout <= 0 || c.Server.RequestTimeout <= 0 {
		return invalid("server 超时配置必须大于 0", "", nil)
	}
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if u == nil || !u.IsAbs() {
		return errors.New("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http/https")
	}
	return nil
}

// RulesOptions maps the engine section onto rules.Options.
func (c *Config) RulesOptions() rules.Options {
	return rules.Options{
		Policy:   rules.StrictPolicy(c.Engine.MaxIllegalChars),
		Networks: rules.NetworkOptions{Collapse: c.Engine.CollapseNetworks},
	}
}

// Location returns the meta timezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Meta.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
