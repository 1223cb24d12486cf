package config

import "os"

func IsDebug() bool {
	return os.Getenv("TUSKMAIL_DEBUG") == "1"
}
