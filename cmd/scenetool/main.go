// scenetool is a CLI utility for flattening BIM model trees and querying
// their construction phases.
package main

import (
	"fmt"
	"os"

	"github.com/Faultbox/bimscene/internal/logger"
)

func main() {
	err := newRootCmd().Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
