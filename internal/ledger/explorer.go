package ledger

import "net/url"

// ExplorerURL links a signature on the public explorer. Mainnet links carry
// no cluster parameter.
func ExplorerURL(cluster, signature string) string {
	u := "https://explorer.solana.com/tx/" + url.PathEscape(signature)
	switch cluster {
	case "", "mainnet", "mainnet-beta":
		return u
	default:
		return u + "?cluster=" + url.QueryEscape(cluster)
	}
}
