package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/lunfardo314/baldcoin/ledger"
	"github.com/lunfardo314/baldcoin/ledger/accountdb"
	"github.com/lunfardo314/baldcoin/ledger/sequencer"
)

// commandLoop reads one command per line:
//
//	tx <hex>          submit a serialized transaction
//	alloc <hex key>   allocate a record controlled by the program
//	balance <hex key> print the account
//	root              print the state commitment
func commandLoop(ctx context.Context, in io.Reader, out io.Writer, db *accountdb.AccountDB, seq *sequencer.Sequencer) error {
	lines, scanErr := readLines(ctx, in)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fmt.Fprintln(out, runCommand(ctx, line, db, seq))
		}
	}
}

// readLines scans in on its own goroutine, so a pending read never delays cancellation.
// The error channel receives the scanner result when the input ends
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}

func runCommand(ctx context.Context, line string, db *accountdb.AccountDB, seq *sequencer.Sequencer) string {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "tx":
		if len(args) != 1 {
			return "error: usage: tx <hex>"
		}
		txBytes, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		if err = seq.SubmitAndWait(ctx, txBytes); err != nil {
			return fmt.Sprintf("rejected: %v", err)
		}
		return "ok"
	case "alloc":
		key, err := parseIdentity(args)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		if err = db.CreateAccount(key); err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return "ok"
	case "balance":
		key, err := parseIdentity(args)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		acc, err := db.Account(key)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return acc.String()
	case "root":
		return db.Root().String()
	}
	return fmt.Sprintf("error: unknown command '%s'", cmd)
}

func parseIdentity(args []string) (ledger.Identity, error) {
	if len(args) != 1 {
		return ledger.Identity{}, fmt.Errorf("expected one hex identity")
	}
	data, err := hex.DecodeString(args[0])
	if err != nil {
		return ledger.Identity{}, err
	}
	return ledger.IdentityFromBytes(data)
}
