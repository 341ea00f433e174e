package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadEnv loads environment variables from a .env file if it exists.
// Variables already set in the environment are not overridden.
func LoadEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		// .env file is optional
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// GetRPCEndpoints returns the comma separated RPC endpoint list from
// the environment.
func GetRPCEndpoints() []string {
	envEndpoints := os.Getenv("RPC_ENDPOINTS")
	if envEndpoints == "" {
		return nil
	}

	endpoints := strings.Split(envEndpoints, ",")
	result := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		trimmed := strings.TrimSpace(endpoint)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// GetWSEndpoint returns the websocket endpoint for account streaming.
func GetWSEndpoint() string {
	return os.Getenv("WS_ENDPOINT")
}

// GetQuoteServiceURL returns the quote service base URL.
func GetQuoteServiceURL() string {
	if url := os.Getenv("QUOTE_SERVICE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// GetJitoURL returns the block engine URL for bundle submission.
func GetJitoURL() string {
	if url := os.Getenv("JITO_BLOCK_ENGINE_URL"); url != "" {
		return url
	}
	return "https://mainnet.block-engine.jito.wtf/api/v1"
}

// GetSignerKey returns the base58 private key used to sign tips and
// swaps. Empty outside live mode is fine.
func GetSignerKey() string {
	return os.Getenv("SIGNER_PRIVATE_KEY")
}
