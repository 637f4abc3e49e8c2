package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	conf := NewDefaultConfig()
	conf.SetDataDir("/tmp/node0")

	if conf.DatabaseDir != filepath.Join("/tmp/node0", DefaultBadgerFile) {
		t.Fatalf("database dir should follow the data dir, got %s", conf.DatabaseDir)
	}
	if conf.Keyfile() != filepath.Join("/tmp/node0", DefaultKeyfile) {
		t.Fatalf("unexpected keyfile %s", conf.Keyfile())
	}
	if conf.SeedsFile() != filepath.Join("/tmp/node0", DefaultSeedsFile) {
		t.Fatalf("unexpected seeds file %s", conf.SeedsFile())
	}

	// an explicit database dir is kept
	conf.DatabaseDir = "/data/db"
	conf.SetDataDir("/tmp/node1")
	if conf.DatabaseDir != "/data/db" {
		t.Fatalf("explicit database dir should be kept, got %s", conf.DatabaseDir)
	}
}

func TestListenAddr(t *testing.T) {
	conf := NewDefaultConfig()
	if conf.ListenAddr() != DefaultBindAddr {
		t.Fatalf("listen addr should default to the bind addr, got %s", conf.ListenAddr())
	}

	conf.AdvertiseAddr = "1.2.3.4:11625"
	if conf.ListenAddr() != "1.2.3.4:11625" {
		t.Fatalf("listen addr should be the advertise addr, got %s", conf.ListenAddr())
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"unknown": logrus.DebugLevel,
	}
	for s, l := range cases {
		if LogLevel(s) != l {
			t.Fatalf("%s should parse to %v, not %v", s, l, LogLevel(s))
		}
	}

	conf := NewDefaultConfig()
	conf.LogLevel = "warn"
	entry := conf.Logger()
	if entry.Logger.Level != logrus.WarnLevel {
		t.Fatalf("logger level should be warn, not %v", entry.Logger.Level)
	}
	if entry.Data["prefix"] != "overlay" {
		t.Fatalf("logger prefix should be overlay, not %v", entry.Data["prefix"])
	}
}
