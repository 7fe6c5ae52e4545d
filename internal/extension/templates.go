package extension

import (
	"encoding/json"
	"text/template"
)

// Bundle file names.
const (
	ManifestFile   = "manifest.json"
	BackgroundFile = "background.js"
	ArchiveFile    = "proxy_auth_extension.zip"
)

// Lines of background.js that carry the embedded configuration. Inspect
// relies on each being a single line.
const (
	configPrefix      = "var config = "
	credentialsPrefix = "var credentials = "
)

type manifest struct {
	Version              string         `json:"version"`
	ManifestVersion      int            `json:"manifest_version"`
	Name                 string         `json:"name"`
	Permissions          []string       `json:"permissions"`
	Background           map[string]any `json:"background"`
	MinimumChromeVersion string         `json:"minimum_chrome_version"`
}

func newManifest() manifest {
	return manifest{
		Version:         "1.0.0",
		ManifestVersion: 2,
		Name:            "DaBrowser Proxy",
		Permissions: []string{
			"proxy",
			"tabs",
			"unlimitedStorage",
			"storage",
			"<all_urls>",
			"webRequest",
			"webRequestBlocking",
		},
		Background: map[string]any{
			"scripts": []string{BackgroundFile},
		},
		MinimumChromeVersion: "22.0.0",
	}
}

type singleProxy struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

type proxyRules struct {
	SingleProxy singleProxy `json:"singleProxy"`
	BypassList  []string    `json:"bypassList"`
}

type proxyConfig struct {
	Mode  string     `json:"mode"`
	Rules proxyRules `json:"rules"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// backgroundData feeds backgroundTemplate. Values are rendered through the
// json func so that credentials cannot break out of the script.
type backgroundData struct {
	Config      proxyConfig
	Credentials credentials
}

var backgroundTemplate = template.Must(template.New(BackgroundFile).Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).Parse(`var config = {{json .Config}};
var credentials = {{json .Credentials}};

chrome.proxy.settings.set({value: config, scope: "regular"}, function() {});

function callbackFn(details) {
    return {
        authCredentials: {
            username: credentials.username,
            password: credentials.password
        }
    };
}

chrome.webRequest.onAuthRequired.addListener(
    callbackFn,
    {urls: ["<all_urls>"]},
    ["blocking"]
);
`))
