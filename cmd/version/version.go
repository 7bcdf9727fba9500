package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/denysvitali/ha-smartcharge/cmd/root"
	"github.com/denysvitali/ha-smartcharge/smartcharge"
)

// Build information. Populated at build-time via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

var short bool

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, build date, Go version and default config location.`,
	Run: func(cmd *cobra.Command, args []string) {
		if short {
			fmt.Println(Version)
			return
		}
		fmt.Printf("ha-smartcharge %s\n", Version)
		fmt.Printf("  Commit:     %s\n", Commit)
		fmt.Printf("  Built:      %s\n", Date)
		fmt.Printf("  Go version: %s\n", GoVersion)
		fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Config:     %s\n", smartcharge.DefaultConfigFilePath)
	},
}

func init() {
	VersionCmd.Flags().BoolVar(&short, "short", false, "print only the version")
	root.RootCmd.AddCommand(VersionCmd)
}
