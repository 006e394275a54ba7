// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"gocloud.dev/secrets"
)

// StringKeeper wraps a secrets.Keeper but accepts and returns strings, which are easier
// to store in a database or pass around. Encrypted and decryptable values must be in
// base64.StdEncoding format.
//
// The underlying Keeper embeds a random nonce and integrity tag in each blob,
// so a tampered value fails decryption instead of returning garbage.
type StringKeeper struct {
	keeper *secrets.Keeper
	enc    *base64.Encoding

	timeout time.Duration
}

func NewStringKeeper(keeper *secrets.Keeper, timeout time.Duration) *StringKeeper {
	return &StringKeeper{
		keeper:  keeper,
		enc:     base64.StdEncoding,
		timeout: timeout,
	}
}

func (str *StringKeeper) Close() error {
	if str == nil {
		return nil
	}
	return str.keeper.Close()
}

// EncryptString accepts a string and returns the base64.StdEncoding encoding of its encrypted contents
func (str *StringKeeper) EncryptString(in string) (string, error) {
	if str == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), str.timeout)
	defer cancelFn()

	bs, err := str.keeper.Encrypt(ctx, []byte(in))
	if err != nil {
		return "", err
	}
	return str.enc.EncodeToString(bs), nil
}

// DecryptString accepts a base64.StdEncoding string and returns the plaintext decrypted version
func (str *StringKeeper) DecryptString(in string) (string, error) {
	if str == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), str.timeout)
	defer cancelFn()

	bs, err := str.enc.DecodeString(in)
	if err != nil {
		return "", err
	}
	bs, err = str.keeper.Decrypt(ctx, bs)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
