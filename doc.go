// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package goregpack signs regulatory XML documents with XAdES Baseline-B and
packs them into password-protected zip archives.

# Overview

go-regpack turns an XML document, a signer certificate and an RSA private key
into an AES-256 encrypted zip that holds exactly one signed XML entry. It is
built for regulators that accept filings as signed XML delivered in an
encrypted archive.

# Specifications Implemented

  - XAdES Baseline-B (ETSI EN 319 132-1): https://www.etsi.org/deliver/etsi_en/319100_319199/31913201/
  - XAdES 1.3.2 (ETSI TS 101 903): https://uri.etsi.org/01903/v1.3.2/
  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
  - Exclusive XML Canonicalization: https://www.w3.org/TR/xml-exc-c14n/
  - WinZip AES encryption (AE-2): https://www.winzip.com/en/support/aes-encryption/
  - PKCS#1 (RFC 8017), PKCS#8 (RFC 5958) and PEM (RFC 7468)

# Package Structure

	github.com/sirosfoundation/go-regpack/pkg/regpack    - Pipeline orchestrating the stages below
	github.com/sirosfoundation/go-regpack/pkg/credential - Credential source resolution and key loading
	github.com/sirosfoundation/go-regpack/pkg/pemblock   - PEM normalization and decoding
	github.com/sirosfoundation/go-regpack/pkg/xades      - XAdES signing and verification
	github.com/sirosfoundation/go-regpack/pkg/archive    - AES-256 encrypted zip packaging
	github.com/sirosfoundation/go-regpack/pkg/failure    - Failure kinds shared by all stages

The regpack command (cmd/regpack) wraps the pipeline with YAML configuration,
an optional MongoDB audit trail and OpenTelemetry tracing.

# Quick Start

	import (
	    "github.com/sirosfoundation/go-regpack/pkg/credential"
	    "github.com/sirosfoundation/go-regpack/pkg/regpack"
	    "github.com/sirosfoundation/go-regpack/pkg/xades"
	)

	out := regpack.New().Process(ctx, regpack.Request{
	    Document:        xml,
	    Certificate:     credential.Reference{Locator: "/etc/regpack/signer.crt"},
	    PrivateKey:      credential.Reference{Inline: os.Getenv("SIGNER_KEY_PEM")},
	    ArchivePassword: os.Getenv("ZIP_PASSWORD"),
	    Packaging:       xades.Enveloping,
	})
	if !out.OK() {
	    log.Fatal(out.Err())
	}
	os.WriteFile("filing.zip", out.Archive, 0o600)

# Credentials

Certificates and keys are PEM, supplied either as a file path or inline.
Inline text may use CRLF line endings or literal "\n" escapes, as happens
when PEM is pasted into environment variables. Accepted private keys:

  - PKCS#1 RSA (BEGIN RSA PRIVATE KEY)
  - PKCS#8 (BEGIN PRIVATE KEY)
  - Encrypted PKCS#8 (BEGIN ENCRYPTED PRIVATE KEY), with a password

Signing requires an RSA key matching the certificate.

# License

BSD-2-Clause License
*/
package goregpack
