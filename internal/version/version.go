// Package version хранит сведения о сборке, проставляемые через -ldflags:
//
//	-X github.com/vladislavdragonenkov/northwind/internal/version.version=v1.0.0
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info содержит сведения о сборке.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get возвращает сведения о текущей сборке.
func Get() Info {
	return Info{Version: version, Commit: commit, Date: date}
}

// GetVersion возвращает только версию.
func GetVersion() string { return version }

func (i Info) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", i.Version, i.Commit, i.Date)
}

// String возвращает сведения о сборке одной строкой для логов.
func String() string {
	return Get().String()
}
