// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package regpack signs an XML document and packs it into an encrypted archive.

A Pipeline runs four stages for every invocation:

	Start -> CredentialsResolved -> KeysLoaded -> Signed -> Packaged -> Done

and moves to Failed from any of them. Every failure carries exactly one
[failure.Kind]; the outcome of a failed invocation never contains an archive
or a partially signed document.

	p := regpack.New(regpack.WithObserver(auditor))
	out := p.Process(ctx, regpack.Request{
	    Document:        xml,
	    Certificate:     credential.Reference{Locator: "/etc/regpack/signer.crt"},
	    PrivateKey:      credential.Reference{Locator: "/etc/regpack/signer.key"},
	    ArchivePassword: password,
	})
	if !out.OK() {
	    return out.Err()
	}

The private key exists only for the duration of the invocation and is wiped
once the signature value is computed. Pipelines are safe for concurrent use.

Outcome.Attributes returns the key/value pairs a flow framework attaches to the
produced archive (mime.type, dgoj.signed, dgoj.encrypted,
dgoj.signature.method) or to the failed input (error.message, error.kind).
*/
package regpack
