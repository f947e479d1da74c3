// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package failure defines the closed failure taxonomy of the signing and
packaging pipeline.

Every component returns a *Error carrying one Kind. Callers recover the kind
through any amount of fmt.Errorf wrapping:

	if kind, ok := failure.KindOf(err); ok {
	    switch kind.Category() {
	    case failure.CategoryConfiguration:
	        // fix credentials or passwords
	    case failure.CategoryStructural:
	        // inspect the inputs or the environment
	    }
	}

Messages never carry passwords, key bytes or PEM bodies.
*/
package failure
