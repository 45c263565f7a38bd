// Package config loads and validates sigport pipeline configuration.
//
// # Sources
//
// Configuration is built in layers:
//
//  1. Default() values
//  2. Each file added with AddLayer, in order. Files may be YAML (.yaml,
//     .yml) or JSON (.json); both are decoded by gopkg.in/yaml.v3 and only
//     the keys present in a file override earlier values.
//  3. SIGPORT_* environment variables, for example SIGPORT_LOG_LEVEL,
//     SIGPORT_PORT_CAPACITY, SIGPORT_NATS_URLS (comma separated) or
//     SIGPORT_METRICS_ENABLED.
//
// # Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/nats.yaml")
//	cfg, err := loader.Load()
//	if err != nil {
//	    return err
//	}
//
// Validation errors wrap errors.ErrInvalidConfig and are classified Invalid.
//
// # Example File
//
//	log:
//	  level: debug
//	port:
//	  capacity: 1024
//	  block_size: 128
//	source:
//	  samples: 100000
//	  sample_rate: 48000
//	modem:
//	  mod_index: 0.5
//	  demod: discriminator
//	nats:
//	  enabled: true
//	  urls: ["nats://localhost:4222"]
//	  subject: sigport.samples
//	  reconnect_wait: 2s
//	  tls:
//	    enabled: true
//	    ca_files: ["/etc/sigport/ca.pem"]
//	    min_version: "1.3"
package config
