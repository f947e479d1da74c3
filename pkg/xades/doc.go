// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package xades signs XML documents as XAdES Baseline-B with RSA-SHA256.

The algorithm suite is fixed:

  - Digest: SHA-256 (http://www.w3.org/2001/04/xmlenc#sha256)
  - Signature: RSA PKCS#1 v1.5 with SHA-256 (http://www.w3.org/2001/04/xmldsig-more#rsa-sha256)
  - Canonicalization: Exclusive XML Canonicalization without comments

# Packaging

Enveloped signatures are appended as the last child of the document root and
reference the whole document (URI="") through the enveloped-signature
transform. Enveloping signatures become the document root; the original root
element moves into a ds:Object that the data reference points at.

# Signing

	signer, err := xades.NewSigner(key, cert)
	signed, err := signer.Sign(document, xades.Enveloped)

Sign runs three steps that are also available separately: [Signer.Prepare]
builds the signature structure and the canonical SignedInfo,
[Signer.SignatureValue] signs those bytes, and [Draft.Complete] splices the
value into the document.

The signed properties carry SigningTime, SigningCertificate (SHA-256 digest
and issuer/serial) and a DataObjectFormat declaring text/xml. The signer
certificate is embedded in ds:KeyInfo.

# Verification

[Verify] checks documents produced by this package and returns the signed
content without its signature.

# References

  - ETSI EN 319 132-1 XAdES Baseline profile
  - ETSI TS 101 903 V1.3.2 XAdES
  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
*/
package xades
