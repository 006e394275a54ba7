// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"strings"
	"time"
)

// ODFI holds the originating institution's identity and the transfer
// channel used to deliver generated files to it.
type ODFI struct {
	// RoutingNumber is the ABA routing number of the originating institution.
	RoutingNumber string `json:"routingNumber" yaml:"routingNumber"`

	// OriginName is printed in file headers as the immediate origin name.
	OriginName string `json:"originName" yaml:"originName"`

	// Destination is the receiving institution's routing number.
	Destination     string `json:"destination" yaml:"destination"`
	DestinationName string `json:"destinationName" yaml:"destinationName"`

	// CompanyIdentification is the 10-character company ID used in batch headers.
	CompanyIdentification string `json:"companyIdentification" yaml:"companyIdentification"`

	OutboundPath string `json:"outboundPath" yaml:"outboundPath"`

	// AllowedIPs is a comma separated list of IPs or CIDR ranges the transfer
	// channel may connect to.
	AllowedIPs string `json:"allowedIPs" yaml:"allowedIPs"`

	Cutoffs Cutoffs `json:"cutoffs" yaml:"cutoffs"`

	FTP  *FTP  `json:"ftp" yaml:"ftp"`
	SFTP *SFTP `json:"sftp" yaml:"sftp"`
}

func (cfg *ODFI) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.RoutingNumber != "" && len(cfg.RoutingNumber) != 9 {
		return errors.New("invalid routing number")
	}
	return nil
}

func (cfg *ODFI) SplitAllowedIPs() []string {
	if cfg.AllowedIPs != "" {
		return strings.Split(cfg.AllowedIPs, ",")
	}
	return nil
}

type Cutoffs struct {
	Timezone string   `json:"timezone" yaml:"timezone"`
	Windows  []string `json:"windows" yaml:"windows"`
}

func (cfg Cutoffs) Location() *time.Location {
	loc, _ := time.LoadLocation(cfg.Timezone)
	return loc
}

type FTP struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	CAFilepath   string `json:"caFile" yaml:"caFile"`
	DialTimeout  string `json:"dialTimeout" yaml:"dialTimeout"`
	DisabledEPSV bool   `json:"disabledEPSV" yaml:"disabledEPSV"`
}

func (cfg *FTP) CAFile() string {
	if cfg == nil {
		return ""
	}
	return cfg.CAFilepath
}

func (cfg *FTP) Timeout() time.Duration {
	if cfg == nil || cfg.DialTimeout == "" {
		return 10 * time.Second
	}
	if dur, err := time.ParseDuration(cfg.DialTimeout); err == nil && dur > 0 {
		return dur
	}
	return 10 * time.Second
}

type SFTP struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	Username string `json:"username" yaml:"username"`

	Password         string `json:"password" yaml:"password"`
	ClientPrivateKey string `json:"clientPrivateKey" yaml:"clientPrivateKey"`
	HostPublicKey    string `json:"hostPublicKey" yaml:"hostPublicKey"`

	DialTimeout           string `json:"dialTimeout" yaml:"dialTimeout"`
	MaxConnectionsPerFile int    `json:"maxConnectionsPerFile" yaml:"maxConnectionsPerFile"`
	MaxPacketSize         int    `json:"maxPacketSize" yaml:"maxPacketSize"`
}

func (cfg *SFTP) Timeout() time.Duration {
	if cfg == nil || cfg.DialTimeout == "" {
		return 10 * time.Second
	}
	if dur, err := time.ParseDuration(cfg.DialTimeout); err == nil && dur > 0 {
		return dur
	}
	return 10 * time.Second
}

func (cfg *SFTP) MaxConnections() int {
	if cfg == nil || cfg.MaxConnectionsPerFile <= 0 {
		return 8 // pkg/sftp's default is 64
	}
	return cfg.MaxConnectionsPerFile
}

func (cfg *SFTP) PacketSize() int {
	if cfg == nil || cfg.MaxPacketSize <= 0 {
		return 20480
	}
	return cfg.MaxPacketSize
}
