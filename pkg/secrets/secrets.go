// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"gocloud.dev/secrets"
	"gocloud.dev/secrets/gcpkms"
	"gocloud.dev/secrets/hashivault"
	"gocloud.dev/secrets/localsecrets"
)

type SecretFunc func(path string) (*secrets.Keeper, error)

var (
	GetSecretKeeper SecretFunc = func(path string) (*secrets.Keeper, error) {
		if path == "" {
			return nil, errors.New("GetSecretKeeper: nil path")
		}

		ctx, cancelFn := context.WithTimeout(context.TODO(), 10*time.Second)
		defer cancelFn()

		return OpenSecretKeeper(ctx, path, os.Getenv("CLOUD_PROVIDER"))
	}
)

// OpenSecretKeeper returns a Go Cloud Development Kit (Go CDK) Keeper object which can be used
// to encrypt and decrypt byte slices and stored in various services.
// Checkout https://gocloud.dev/ref/secrets/ for more details.
//
// Key material must resolve or an error is returned. There is no fallback to
// a weaker or hardcoded key.
func OpenSecretKeeper(ctx context.Context, path, cloudProvider string) (*secrets.Keeper, error) {
	switch strings.ToLower(cloudProvider) {
	case "", "local":
		return OpenLocal(os.Getenv("SECRETS_LOCAL_BASE64_KEY"))
	case "gcp":
		return openGCPKMS()
	case "vault":
		return openVault(path)
	}
	return nil, fmt.Errorf("unknown secrets cloudProvider=%s", cloudProvider)
}

// OpenLocal returns an inmemory Keeper based on a provided key.
//
// The hostname must be a base64-encoded key, of length 32 bytes when decoded.
// Missing key material is an error: every encrypt and decrypt would otherwise
// run against a key an attacker could guess.
func OpenLocal(base64Key string) (*secrets.Keeper, error) {
	if base64Key == "" {
		return nil, errors.New("missing SECRETS_LOCAL_BASE64_KEY")
	}
	key, err := localsecrets.Base64Key(base64Key)
	if err != nil {
		return nil, fmt.Errorf("problem reading SECRETS_LOCAL_BASE64_KEY: %v", err)
	}
	return localsecrets.NewKeeper(key), nil
}

// openGCPKMS returns a Google Cloud Key Management Service Keeper for managing secrets in Google's cloud
//
// The environmental variable SECRETS_GCP_KEY_RESOURCE_ID is required and has the following form:
//  'projects/MYPROJECT/locations/MYLOCATION/keyRings/MYKEYRING/cryptoKeys/MYKEY'
//
// See https://cloud.google.com/kms/docs/object-hierarchy#key for more information
func openGCPKMS() (*secrets.Keeper, error) {
	ctx, cancelFn := context.WithTimeout(context.TODO(), 10*time.Second)
	defer cancelFn()

	client, done, err := gcpkms.Dial(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer done()

	return gcpkms.OpenKeeper(client, os.Getenv("SECRETS_GCP_KEY_RESOURCE_ID"), nil), nil
}

// openVault returns a Keeper for storing values inside of a Vault instance.
//
// The scheme for key values should be: vault://mykey
func openVault(path string) (*secrets.Keeper, error) {
	serverURL := "http://127.0.0.1:8200"
	if v := os.Getenv("VAULT_SERVER_URL"); v != "" {
		serverURL = v
	}

	client, err := hashivault.Dial(context.Background(), &hashivault.Config{
		Token: os.Getenv("VAULT_SERVER_TOKEN"),
		APIConfig: api.Config{
			Address: serverURL,
		},
	})
	if err != nil {
		return nil, err
	}

	return hashivault.OpenKeeper(client, path, nil), nil
}
