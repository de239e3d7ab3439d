// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Corvid developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/corvid-chain/corvidd/chainhash"
	"github.com/corvid-chain/corvidd/connmgr"
)

const (
	defaultConfigFilename = "corvidd.conf"
	defaultLogFilename    = "corvidd.log"
	defaultDbCacheMB      = 100
	defaultDebugLevel     = "info"
)

// config defines the configuration options for corvidd, populated from the
// config file first and the command line second, so flags override file
// settings.
type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"data-dir" description:"Directory to store data"`
	DbCache     int    `long:"db-cache" description:"Database cache size in megabytes"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	TestNet bool `long:"testnet" description:"Use the test network"`
	RegNet  bool `long:"regtest" description:"Use the regression test network"`

	Port         string   `long:"port" description:"Override the listen port for peer connections"`
	Host         string   `long:"host" description:"Interface to listen on for peer connections"`
	ConnectPeers []string `long:"connect" description:"Connect only to the specified peers at startup"`
	SeedNodes    []string `long:"seednode" description:"Seed node to bootstrap addresses from; may be repeated"`
	OnlyNet      string   `long:"only-net" description:"Restrict outbound connections to one address family" choice:"ipv4" choice:"ipv6" choice:"any" default:"any"`
	Proxy        string   `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser    string   `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass    string   `long:"proxypass" default-mask:"-" description:"Password for proxy server"`

	NoJSONRPC        bool     `long:"no-jsonrpc" description:"Disable the JSON-RPC server"`
	JSONRPCPort      string   `long:"jsonrpc-port" description:"Override the JSON-RPC listen port"`
	JSONRPCInterface string   `long:"jsonrpc-interface" description:"Interface the JSON-RPC server binds to" default:"127.0.0.1"`
	JSONRPCCORS      []string `long:"jsonrpc-cors" description:"Origin allowed to make cross-origin JSON-RPC requests; may be repeated"`
	JSONRPCHosts     []string `long:"jsonrpc-hosts" description:"Host header value accepted by the JSON-RPC server; may be repeated"`
	JSONRPCAPIs      []string `long:"jsonrpc-apis" description:"API family to enable {control, raw, miner, blockchain, network, generate}; may be repeated"`

	BlockNotify string `long:"blocknotify" description:"Command to run when the best block changes (%s is replaced by the block hash)"`

	VerificationLevel string `long:"verification-level" description:"Block verification depth" choice:"full" choice:"header" choice:"none" default:"full"`
	VerificationEdge  string `long:"verification-edge" description:"Hash of a trusted block; blocks below it receive header-only verification"`

	// Derived, not settable from flags.
	params     *netParams
	netDir     string
	listenAddr string
	rpcListen  string
	edgeHash   *chainhash.Hash
	onlyNet    connmgr.NetRestriction
}

// defaultDataDir returns the default data directory, ~/.corvidd on Unix.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".corvidd")
}

// loadConfig initializes and parses the config using a config file and
// command line options, returning the config and any remaining positional
// arguments (the subcommand).
func loadConfig() (*config, []string, error) {
	cfg := config{
		DataDir:    defaultDataDir(),
		DbCache:    defaultDbCacheMB,
		DebugLevel: defaultDebugLevel,
	}

	// A pre-parse pass picks up --configfile and --data-dir so the real
	// parse can layer the file under the flags.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	if _, err := preParser.Parse(); err != nil {
		return nil, nil, err
	}

	parser := flags.NewParser(&cfg, flags.Default)
	configFile := preCfg.ConfigFile
	if configFile == "" {
		configFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}
	if err := flags.NewIniParser(parser).ParseFile(configFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, nil, fmt.Errorf("parsing config file: %w", err)
		}
		// A missing config file is fine; flags alone configure the node.
	}

	remaining, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	if cfg.TestNet && cfg.RegNet {
		return nil, nil, fmt.Errorf("--testnet and --regtest are mutually exclusive")
	}
	switch {
	case cfg.TestNet:
		cfg.params = &testNetParams
	case cfg.RegNet:
		cfg.params = &regNetParams
	default:
		cfg.params = &mainNetParams
	}

	cfg.netDir = filepath.Join(cfg.DataDir, netName(cfg.params))
	if err := os.MkdirAll(cfg.netDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	port := cfg.Port
	if port == "" {
		port = cfg.params.DefaultPort
	}
	cfg.listenAddr = net.JoinHostPort(cfg.Host, port)

	rpcPort := cfg.JSONRPCPort
	if rpcPort == "" {
		rpcPort = cfg.params.rpcPort
	}
	cfg.rpcListen = net.JoinHostPort(cfg.JSONRPCInterface, rpcPort)

	if cfg.VerificationEdge != "" {
		hash, err := chainhash.NewHashFromStr(cfg.VerificationEdge)
		if err != nil {
			return nil, nil, fmt.Errorf("malformed --verification-edge: %w", err)
		}
		cfg.edgeHash = hash
	}

	switch cfg.OnlyNet {
	case "ipv4":
		cfg.onlyNet = connmgr.NetIPv4Only
	case "ipv6":
		cfg.onlyNet = connmgr.NetIPv6Only
	default:
		cfg.onlyNet = connmgr.NetAny
	}

	return &cfg, remaining, nil
}
