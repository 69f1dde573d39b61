package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"github.com/openrport/devhost/caddy"
	"github.com/openrport/devhost/domain"
	"github.com/openrport/devhost/share/files"
	"github.com/openrport/devhost/share/logger"
)

const testAdminURL = "http://127.0.0.1:2019"

func newProjectDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.Mkdir(dir, 0755))
	return dir
}

func newTestConfig(t *testing.T, projectDir string) *caddy.Config {
	t.Helper()
	mLog := logger.NewMemLogger()
	c := &caddy.Config{
		AdminURL:           testAdminURL,
		ProjectDir:         projectDir,
		Port:               5173,
		FailOnActiveDomain: true,
	}
	require.NoError(t, c.ParseAndValidate(&mLog, files.NewFileSystem()))
	return c
}

func TestShouldLoadConfigFromFile(t *testing.T) {
	mLog := logger.NewMemLogger()
	*cfgPath = "./test.conf"
	defer func() { *cfgPath = "" }()

	err := decodeAndValidateConfig(&mLog, files.NewFileSystem())
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:2020", cfg.AdminURL)
	assert.Equal(t, "dev", cfg.ServerID)
	assert.Equal(t, []string{":8443"}, cfg.Listen)
	assert.Equal(t, domain.NameSourcePkg, cfg.NameSource)
	assert.Equal(t, "test", cfg.TLD)
	assert.Equal(t, 4000, cfg.Port)
	assert.False(t, cfg.FailOnActiveDomain)
	assert.Equal(t, time.Second, cfg.ProbeTimeout)
	assert.Equal(t, logger.LogLevelWarn, cfg.LogLevel)

	// flag defaults fill what the file leaves out
	assert.Equal(t, "127.0.0.1", cfg.UpstreamHost)
	assert.Equal(t, caddy.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.False(t, cfg.AppendRoute)
}

func TestRunUpCreatesRoute(t *testing.T) {
	defer gock.Off()

	gock.New(testAdminURL).Get("/config/").Reply(http.StatusOK).BodyString("null")
	gock.New(testAdminURL).Post("/config/").MatchType("json").Reply(http.StatusOK)
	gock.New(testAdminURL).Get("/config/apps/http/servers/srv0/routes").Reply(http.StatusOK).BodyString("[]")
	gock.New(testAdminURL).
		Post("/config/apps/http/servers/srv0/routes").
		MatchType("json").
		JSON(map[string]interface{}{
			"match":    []map[string]interface{}{{"host": []string{"app.localhost"}}},
			"handle":   []map[string]interface{}{{"handler": "reverse_proxy", "upstreams": []map[string]string{{"dial": "127.0.0.1:5173"}}}},
			"terminal": true,
		}).
		Reply(http.StatusOK)

	c := newTestConfig(t, newProjectDir(t, "app"))
	var out bytes.Buffer
	err := runUp(context.Background(), c, files.NewFileSystem(), logger.Discard(), &out)

	require.NoError(t, err)
	assert.Equal(t, "https://app.localhost -> 127.0.0.1:5173\n", out.String())
	assert.True(t, gock.IsDone())
}

func TestRunUpRequiresPort(t *testing.T) {
	c := newTestConfig(t, newProjectDir(t, "app"))
	c.Port = 0

	var out bytes.Buffer
	err := runUp(context.Background(), c, files.NewFileSystem(), logger.Discard(), &out)

	assert.ErrorIs(t, err, caddy.ErrLocalPortUnknown)
	assert.Empty(t, out.String())
}

func TestRunUpWithoutProjectName(t *testing.T) {
	c := newTestConfig(t, newProjectDir(t, "___"))

	var out bytes.Buffer
	err := runUp(context.Background(), c, files.NewFileSystem(), logger.Discard(), &out)
	assert.ErrorIs(t, err, domain.ErrNoProjectName)
	assert.Empty(t, out.String())

	err = printDomain(c, files.NewFileSystem(), &out)
	assert.ErrorIs(t, err, domain.ErrNoProjectName)
}

func TestRunDownWithoutRoute(t *testing.T) {
	defer gock.Off()

	gock.New(testAdminURL).Get("/config/apps/http/servers/srv0/routes").Reply(http.StatusOK).BodyString("[]")

	c := newTestConfig(t, newProjectDir(t, "app"))
	var out bytes.Buffer
	err := runDown(context.Background(), c, files.NewFileSystem(), logger.Discard(), &out)

	require.NoError(t, err)
	assert.Equal(t, "no route removed for app.localhost\n", out.String())
	assert.True(t, gock.IsDone())
}

func TestRunDownRemovesRoute(t *testing.T) {
	defer gock.Off()

	gock.New(testAdminURL).
		Get("/config/apps/http/servers/srv0/routes").
		Reply(http.StatusOK).
		JSON([]caddy.Route{caddy.NewRoute("app.localhost", "127.0.0.1", 5173)})
	gock.New(testAdminURL).Delete("/config/apps/http/servers/srv0/routes/0").Reply(http.StatusOK)

	c := newTestConfig(t, newProjectDir(t, "app"))
	var out bytes.Buffer
	err := runDown(context.Background(), c, files.NewFileSystem(), logger.Discard(), &out)

	require.NoError(t, err)
	assert.Equal(t, "removed route for app.localhost\n", out.String())
	assert.True(t, gock.IsDone())
}

func TestPrintDomain(t *testing.T) {
	dir := newProjectDir(t, "My Project")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"web-ui"}`), 0600))

	cases := []struct {
		Name     string
		Modify   func(c *caddy.Config)
		Expected string
	}{
		{
			Name:     "folder",
			Expected: "my-project.localhost\thttps://my-project.localhost\n",
		},
		{
			Name: "manifest on custom port",
			Modify: func(c *caddy.Config) {
				c.NameSource = domain.NameSourcePkg
				c.Listen = []string{":8443"}
			},
			Expected: "web-ui.localhost\thttps://web-ui.localhost:8443\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			c := newTestConfig(t, dir)
			if tc.Modify != nil {
				tc.Modify(c)
			}

			var out bytes.Buffer
			require.NoError(t, printDomain(c, files.NewFileSystem(), &out))
			assert.Equal(t, tc.Expected, out.String())
		})
	}
}

func TestCheckHostsWarnsOnMissingEntry(t *testing.T) {
	dir := t.TempDir()
	hosts := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(hosts, []byte("127.0.0.1 known.test\n"), 0600))

	logfile := filepath.Join(dir, "devhost.log")
	f, err := os.Create(logfile)
	require.NoError(t, err)
	defer f.Close()
	l := logger.NewLogger("devhost", logger.LogOutput{File: f}, logger.LogLevelDebug)

	checkHosts(files.NewFileSystem(), hosts, "known.test", l)
	checkHosts(files.NewFileSystem(), hosts, "app.localhost", l)
	checkHosts(files.NewFileSystem(), hosts, "missing.test", l)
	checkHosts(files.NewFileSystem(), filepath.Join(dir, "missing"), "other.test", l)

	content, err := os.ReadFile(logfile)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "known.test is not in")
	assert.NotContains(t, string(content), "app.localhost")
	assert.Contains(t, string(content), "missing.test is not in")
	assert.Contains(t, string(content), "unable to check hosts file")
}
