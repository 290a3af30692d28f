package database

import "github.com/lib/pq"

func quoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func quoteLiteral(lit string) string {
	return pq.QuoteLiteral(lit)
}
