package config

import (
	"os"
	"strconv"
)

type Config struct {
	Limit          int
	Mode           string
	OutputPath     string
	PromptTemplate string
	LegacyParse    bool
	VerifyDKIM     bool

	OpenAIApiKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string

	SpamdHost string
	SpamdPort string

	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	GmailTokenURI     string
}

func Load() Config {
	return Config{
		Limit:          getInt("EMAIL_LIMIT", 5),
		Mode:           getEnv("CLASSIFY_MODE", "keyword"),
		OutputPath:     getEnv("OUTPUT_PATH", "output.csv"),
		PromptTemplate: os.Getenv("PROMPT_TEMPLATE"),

		OpenAIApiKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),

		SpamdHost: getEnv("SPAMASSASSIN_HOST", "127.0.0.1"),
		SpamdPort: getEnv("SPAMASSASSIN_PORT", "783"),

		GmailClientID:     os.Getenv("GMAIL_CLIENT_ID"),
		GmailClientSecret: os.Getenv("GMAIL_CLIENT_SECRET"),
		GmailRefreshToken: os.Getenv("GMAIL_REFRESH_TOKEN"),
		GmailTokenURI:     os.Getenv("GMAIL_TOKEN_URI"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
