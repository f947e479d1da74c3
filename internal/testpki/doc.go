// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package testpki builds throwaway keys and certificates and renders them in
// every PEM flavour the credential loader accepts. It is only imported from
// tests.
package testpki
