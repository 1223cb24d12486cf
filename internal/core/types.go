package core

const (
	TuskMailName          = "TuskMail"
	TuskMailUserAgent     = "TuskMail-Agent/0.1"
	TuskMailRepositoryURL = "https://github.com/sandevgo/tuskmail"
	TuskMailVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn exchanged with the language-model oracle.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
