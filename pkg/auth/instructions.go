package auth

import (
	"fmt"
	"strings"
)

// ShowTokenGuide explains where the API token comes from and how it is stored
func ShowTokenGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("API TOKEN SETUP")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("A token is only needed when the text-to-image server sits behind")
	fmt.Println("an authenticating proxy or a hosted gateway that expects")
	fmt.Println("  Authorization: Bearer <token>")
	fmt.Println()
	fmt.Println("Ways to provide it, highest priority first:")
	fmt.Println("  1. ytshorts auth login      stores it in the system keychain,")
	fmt.Println("                              or an encrypted file when no keychain exists")
	fmt.Printf("  2. %-24s read on every start\n", TokenEnvVar)
	fmt.Println()
	fmt.Println("The token is never written to the YAML config file.")
	fmt.Println(strings.Repeat("=", 72))
}
