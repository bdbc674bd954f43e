//go:build linux

// threecorner-ibus is the IBus engine process of the threecorner input
// method.
//
// Installation:
//  1. Copy the binary to /usr/local/bin/threecorner-ibus
//  2. Run: threecorner-ibus -install
//  3. Restart IBus: ibus restart
//  4. Add "Three Corner" in ibus-setup or the desktop keyboard settings
//
// IBus starts the process with -ibus and asks the factory for an engine
// per input context.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/godbus/dbus/v5"

	"threecorner/internal/config"
	"threecorner/internal/host"
	"threecorner/internal/logging"
	"threecorner/internal/service"
)

const componentFile = "threecorner.xml"

func main() {
	installFlag := flag.Bool("install", false, "Install IBus component")
	uninstallFlag := flag.Bool("uninstall", false, "Uninstall IBus component")
	configPath := flag.String("config", "", "path to config file")
	flag.Bool("ibus", false, "started by the IBus daemon")
	flag.Parse()

	if *installFlag {
		if err := installComponent(); err != nil {
			fatal("install: %v", err)
		}
		fmt.Println("Installed successfully. Run 'ibus restart' to load.")
		return
	}
	if *uninstallFlag {
		if err := uninstallComponent(); err != nil {
			fatal("uninstall: %v", err)
		}
		fmt.Println("Uninstalled successfully.")
		return
	}

	if *configPath == "" {
		*configPath = config.FindConfigFile()
	}
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fatal("loading config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fatal("creating directories: %v", err)
	}

	lc, err := cfg.LoggerConfig()
	if err != nil {
		fatal("%v", err)
	}
	lc.Component = "ibus"
	log, err := logging.New(lc)
	if err != nil {
		fatal("creating logger: %v", err)
	}
	defer log.Close()
	logging.SetDefault(log)

	if err := loader.Watch(); err != nil {
		log.Warn("config watch unavailable", "path", loader.Path(), "error", err)
	}
	defer loader.Close()

	svc, err := service.New(cfg, service.WithLogger(log), service.WithLoader(loader))
	if err != nil {
		log.Error("service init failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	if err := svc.Start(); err != nil {
		log.Error("service start failed", "error", err)
		os.Exit(1)
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		log.Error("connect to session bus", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	factory := host.NewFactory(conn, svc, log)
	defer factory.Close()
	if err := factory.Export(); err != nil {
		log.Error("export factory", "error", err)
		os.Exit(1)
	}

	reply, err := conn.RequestName(host.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		log.Error("request bus name", "name", host.BusName, "error", err)
		os.Exit(1)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		log.Error("bus name already taken", "name", host.BusName)
		os.Exit(1)
	}

	log.Info("ibus engine started", "name", host.EngineName, "scheme", cfg.Input.Scheme)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", "signal", sig.String(), "engines", factory.Active())
}

func fatal(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "threecorner-ibus: "+format+"\n", a...)
	os.Exit(1)
}

func componentDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "ibus", "component"), nil
}

func installComponent() error {
	dir, err := componentDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	binPath, err := os.Executable()
	if err != nil {
		binPath = "/usr/local/bin/threecorner-ibus"
	}

	componentXML := `<?xml version="1.0" encoding="utf-8"?>
<component>
    <name>` + host.BusName + `</name>
    <description>Three Corner Chinese input method</description>
    <exec>` + binPath + ` -ibus</exec>
    <version>` + host.EngineVersion + `</version>
    <author>threecorner</author>
    <license>GPL</license>
    <textdomain>threecorner</textdomain>
    <engines>
        <engine>
            <name>` + host.EngineName + `</name>
            <language>zh_TW</language>
            <license>GPL</license>
            <author>threecorner</author>
            <icon>threecorner</icon>
            <layout>us</layout>
            <longname>Three Corner</longname>
            <description>三角編號 table-driven input method</description>
            <rank>50</rank>
            <symbol>三</symbol>
        </engine>
    </engines>
</component>`

	return os.WriteFile(filepath.Join(dir, componentFile), []byte(componentXML), 0644)
}

func uninstallComponent() error {
	dir, err := componentDir()
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(dir, componentFile))
}
