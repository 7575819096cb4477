// Command client is the interactive Client (CL) of the gateway: it logs
// in once, then drops into the interactive menu named by spec.md — one
// UI flow plus the offline-queue's background drainer, both alive for
// the life of the process.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/client"
	"github.com/interbank-gateway/atomicpay/internal/ledger"
	"github.com/interbank-gateway/atomicpay/internal/rpcx"
	"github.com/spf13/cobra"
)

var (
	coordinatorAddr string
	tlsCertFile     string
	tlsKeyFile      string
	tlsServerCA     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "client [bank] [user] [password]",
		Short: "Interbank gateway client",
		Args:  cobra.RangeArgs(0, 3),
		RunE:  run,
	}
	rootCmd.Flags().StringVar(&coordinatorAddr, "coordinator", "127.0.0.1:9000", "coordinator address")
	rootCmd.Flags().StringVar(&tlsCertFile, "tls-cert", "", "client TLS certificate (mTLS)")
	rootCmd.Flags().StringVar(&tlsKeyFile, "tls-key", "", "client TLS key (mTLS)")
	rootCmd.Flags().StringVar(&tlsServerCA, "tls-server-ca", "", "server CA bundle")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tlsConfig() *rpcx.TLSConfig {
	return &rpcx.TLSConfig{CertFile: tlsCertFile, KeyFile: tlsKeyFile, ServerCA: tlsServerCA}
}

func reauthPrompt() (bank, user, password string) {
	fmt.Fprintln(os.Stderr, "session unauthorized, please re-authenticate")
	return promptCredentials()
}

func promptCredentials() (bank, user, password string) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(os.Stderr, "bank: ")
	bank, _ = reader.ReadString('\n')
	fmt.Fprint(os.Stderr, "username: ")
	user, _ = reader.ReadString('\n')
	fmt.Fprint(os.Stderr, "password: ")
	password, _ = reader.ReadString('\n')
	return trimNewline(bank), trimNewline(user), trimNewline(password)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// run dials the coordinator once, logs in, then hands off to the
// interactive menu. The Session, and its background offline-queue
// drainer, lives for the whole of run rather than one action, so a
// transfer queued because the coordinator is unreachable can still be
// drained and surfaced later in the same run.
func run(cmd *cobra.Command, args []string) error {
	sess, err := client.Dial(coordinatorAddr, tlsConfig(), reauthPrompt)
	if err != nil {
		return err
	}
	defer sess.Close()

	var bank, user, password string
	if len(args) == 3 {
		bank, user, password = args[0], args[1], args[2]
	} else {
		fmt.Println("log in to continue")
		bank, user, password = promptCredentials()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = sess.Login(ctx, bank, user, password)
	cancel()
	if err != nil {
		return err
	}
	fmt.Println("login ok")

	runMenu(sess)
	return nil
}

func printMenu() {
	fmt.Println("commands: transfer <dst_bank> <dst_user> <amount> | balance | history | queue | help | quit")
}

// runMenu is the interactive menu named by spec.md as CL's front end:
// one action per line against the same Session until the user quits or
// stdin closes.
func runMenu(sess *client.Session) {
	printMenu()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "transfer":
			handleTransfer(sess, fields[1:])
		case "balance":
			handleBalance(sess)
		case "history":
			handleHistory(sess)
		case "queue":
			fmt.Printf("%d queued\n", sess.QueueLen())
		case "help":
			printMenu()
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
			printMenu()
		}
	}
}

func handleTransfer(sess *client.Session, args []string) {
	if len(args) != 3 {
		fmt.Println("usage: transfer <dst_bank> <dst_user> <amount>")
		return
	}
	amount, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		fmt.Printf("invalid amount %q: %v\n", args[2], err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	outcome := sess.Transfer(ctx, args[0], args[1], ledger.Money(amount))
	switch outcome.Status {
	case "queued":
		fmt.Println("queued: coordinator unreachable, will retry in background")
	case "committed":
		fmt.Println("committed")
	case "aborted":
		fmt.Printf("aborted(%s)\n", outcome.Reason)
	case "duplicate":
		fmt.Printf("duplicate(%s)\n", outcome.Reason)
	default:
		fmt.Printf("error: %s\n", outcome.Reason)
	}
}

func handleBalance(sess *client.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	amount, err := sess.Balance(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(amount)
}

func handleHistory(sess *client.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	entries, err := sess.History(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, e := range entries {
		fmt.Printf("%s %s %s/%s %d\n", e.TxID, e.Direction, e.CounterpartyBank, e.CounterpartyUser, e.Amount)
	}
}
