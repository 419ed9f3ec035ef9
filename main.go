// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("📚 go-contentsync - Local-First Learning Content Sync")
	fmt.Println("=====================================================")
	fmt.Println()
	fmt.Println("go-contentsync keeps an on-device SQLite copy of words, flashcards and exams")
	fmt.Println("in step with a remote content service, and negotiates dataset versions")
	fmt.Println("(optional, forced and incompatible updates).")
	fmt.Println()

	fmt.Println("📦 Available Examples:")
	fmt.Println()
	fmt.Println("1. 🌐 Content Server (examples/content_server/)")
	fmt.Println("   Remote content service on net/http + Postgres")
	fmt.Println("   Features: JWT auth, keyset paging, admin import, version publishing")
	fmt.Println("   Run: cd examples/content_server && go run .")
	fmt.Println()

	fmt.Println("2. 📱 Mobile Client (examples/mobile_client/)")
	fmt.Println("   Device-side CLI over a local SQLite file")
	fmt.Println("   Features: full sync with progress, update checks, scheduled background sync")
	fmt.Println("   Run: cd examples/mobile_client && go run . sync")
	fmt.Println()
}
