// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package archive packs a signed document into a password-protected zip.

Archives hold exactly one entry, compressed with deflate and encrypted with
WinZip AES-256 (AE-2) under a key derived from the password with
PBKDF2-HMAC-SHA1. Standard tools such as 7-Zip and WinZip open them:

	archive, err := archive.NewPackager().Package(archive.Entry{
	    Name:    "enveloped.xml",
	    Content: signed,
	}, password)

An empty password is InvalidPassword; any failure of the zip writer is
ArchiveWriteFailed. [Open] reverses the operation.
*/
package archive
