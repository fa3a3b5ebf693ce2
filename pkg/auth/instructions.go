package auth

import (
	"fmt"
	"io"
	"strings"
)

// PrintAPIKeyGuide explains where the collector looks for its API key
func PrintAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "API KEY SETUP")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The collector sends a static API key with every request.")
	fmt.Fprintln(w, "It is looked up in this order:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. --api-key flag")
	fmt.Fprintln(w, "  2. TWSCRAPER_API_KEY (or the legacy API_TOKEN) environment variable")
	fmt.Fprintln(w, "  3. api.api_key in the config file")
	fmt.Fprintln(w, "  4. a credential saved with 'twscraper auth login'")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Saved credentials go to the system keychain when one is available and")
	fmt.Fprintln(w, "to an encrypted file in the config directory otherwise. Set "+PassphraseEnv)
	fmt.Fprintln(w, "to choose the passphrase of that file.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
