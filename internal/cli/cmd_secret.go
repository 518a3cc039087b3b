package cli

import (
	"fmt"
	"os"

	"github.com/helewild/gridhud/internal/auth"
)

// runSecret prints a freshly generated shared secret on stdout so it can be
// piped into an env file and pasted into the device script in one go.
func runSecret() int {
	secret, err := auth.GenerateSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate secret:", err)
		return 1
	}
	fmt.Println(secret)
	return 0
}
