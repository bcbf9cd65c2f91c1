// Command inspect dumps the relay's stored chat records from a Badger
// directory for operator debugging.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
)

func main() {
	dbPath := flag.String("db", "/tmp/chat-relay", "Path to badger DB")
	// Default to message records; use "channel:" or "profile:" for the rest.
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Sender", "Recipient", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Conversation index entries hold bare IDs, not documents.
			if strings.HasPrefix(key, "dm:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(toRow(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
}

func toRow(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if err := json.Unmarshal(value, &m); err != nil {
			return []string{key, "MSG", "", "", "", fmt.Sprintf("unreadable: %v", err)}
		}
		detail := m.Content
		if m.Type == domain.MessageTypeFile {
			detail = m.FileURL
		}
		return []string{key, strings.ToUpper(string(m.Type)),
			m.Timestamp.Format("2006-01-02 15:04:05"), m.Sender, m.Recipient, detail}
	case strings.HasPrefix(key, "channel:"):
		var c domain.Channel
		if err := json.Unmarshal(value, &c); err != nil {
			return []string{key, "CHANNEL", "", "", "", fmt.Sprintf("unreadable: %v", err)}
		}
		detail := fmt.Sprintf("%s (%d members, %d messages)", c.Name, len(c.Members), len(c.Messages))
		return []string{key, "CHANNEL", "", c.Admin, "", detail}
	case strings.HasPrefix(key, "profile:"):
		var p domain.Profile
		if err := json.Unmarshal(value, &p); err != nil {
			return []string{key, "PROFILE", "", "", "", fmt.Sprintf("unreadable: %v", err)}
		}
		return []string{key, "PROFILE", "", p.ID, "", p.Email}
	default:
		return []string{key, "RAW", "", "", "", string(value)}
	}
}
