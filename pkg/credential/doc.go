// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package credential resolves where a certificate or private key comes from and
loads it.

# Resolution

Each credential may be supplied as a locator (a file path), as inline PEM, or
both. [Resolve] picks exactly one:

	res, err := credential.Resolve(credential.Reference{
	    Locator: cfg.PrivateKey.Path,
	    Inline:  cfg.PrivateKey.PEM,
	}, credential.RolePrivateKey)
	if res.Warning != "" {
	    log.Warn().Msg(res.Warning)
	}

When both are present the locator wins. A value is treated as inline PEM when
it starts with "-----BEGIN" after leading whitespace, whichever field it came
from.

# Loading

A [Loader] reads the selected material fresh on every call and never caches
keys:

	loader := credential.NewLoader()
	cert, err := loader.Certificate(certRes.Material)
	key, err := loader.PrivateKey(keyRes.Material, password)
	defer key.Destroy()

Supported private keys are PKCS#1 RSA, PKCS#8 and password-encrypted PKCS#8
(PBES2). EC and Ed25519 keys load, but the signature engine only accepts RSA.
*/
package credential
