// Command paulette is the operator's toolbox: key generation,
// identifier minting, detached admin signatures, and journal reads.
package main

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"paulette.land/internal/auth"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "keygen":
			keygenCmd(os.Args[2:])
			return
		case "office-id":
			officeIDCmd()
			return
		case "auction-ref":
			auctionRefCmd()
			return
		case "sign":
			signCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: paulette <keygen|office-id|auction-ref|sign|journal> [flags]")
	os.Exit(2)
}

func keygenCmd(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "admin", "output file prefix (<out>.key, <out>.pub)")
	_ = fs.Parse(args)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fatal("keygen:", err)
	}
	if err := os.WriteFile(*out+".key", []byte(hex.EncodeToString(priv)+"\n"), 0o600); err != nil {
		fatal("write key:", err)
	}
	if err := os.WriteFile(*out+".pub", []byte(hex.EncodeToString(pub)+"\n"), 0o644); err != nil {
		fatal("write pub:", err)
	}
	fmt.Printf("identity: %s\n", auth.AccountIdentity(pub))
}

func officeIDCmd() {
	id := uuid.New()
	fmt.Println(hex.EncodeToString(id[:]))
}

func auctionRefCmd() {
	var ref [32]byte
	if _, err := rand.Read(ref[:]); err != nil {
		fatal("auction-ref:", err)
	}
	fmt.Println(hex.EncodeToString(ref[:]))
}

func signCmd(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyPath := fs.String("key", "admin.key", "private key file from keygen")
	op := fs.String("op", "new_office", "operation to sign (new_office|revoke)")
	office := fs.String("office", "", "office id (32 hex chars)")
	auctionRef := fs.String("auction", "", "auction ref (64 hex chars)")
	start := fs.String("start", "", "start price (decimal)")
	min := fs.String("min", "", "min price (decimal)")
	slope := fs.String("slope", "", "price decay slope in seconds per unit (decimal)")
	nonce := fs.Uint64("nonce", 0, "admin nonce (query the server's nonce op)")
	_ = fs.Parse(args)

	if *op != "new_office" && *op != "revoke" {
		fatal("sign:", fmt.Errorf("unknown op %q", *op))
	}
	priv := readKey(*keyPath)
	officeB := mustHex(*office, 16, "office")
	auctionB := mustHex(*auctionRef, 32, "auction")

	payload := auth.Payload{
		Op:      *op,
		Office:  officeB,
		Auction: auctionB,
		Start:   mustAmount(*start, "start").Bytes(),
		Min:     mustAmount(*min, "min").Bytes(),
		Slope:   mustAmount(*slope, "slope").Bytes(),
		Nonce:   *nonce,
	}
	proof, err := auth.Sign(priv, payload)
	if err != nil {
		fatal("sign:", err)
	}

	out := map[string]any{
		"op":      *op,
		"office":  *office,
		"auction": *auctionRef,
		"start":   *start,
		"min":     *min,
		"slope":   *slope,
		"nonce":   *nonce,
		"proof": map[string]string{
			"public_key": hex.EncodeToString(proof.PublicKey),
			"signature":  hex.EncodeToString(proof.Signature),
		},
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	file := fs.String("file", "", "ops journal file (.jsonl.zst)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*file) == "" {
		fatal("journal:", fmt.Errorf("missing -file"))
	}
	f, err := os.Open(*file)
	if err != nil {
		fatal("journal:", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		fatal("journal:", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		fmt.Println(sc.Text())
	}
	if err := sc.Err(); err != nil {
		fatal("journal:", err)
	}
}

func readKey(path string) ed25519.PrivateKey {
	b, err := os.ReadFile(path)
	if err != nil {
		fatal("read key:", err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(b)))
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		fatal("read key:", fmt.Errorf("malformed key file %s", path))
	}
	return ed25519.PrivateKey(raw)
}

func mustHex(s string, n int, what string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != n {
		fatal("sign:", fmt.Errorf("%s must be %d hex bytes", what, n))
	}
	return b
}

func mustAmount(s, what string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		fatal("sign:", fmt.Errorf("%s must be a non-negative decimal", what))
	}
	return n
}

func fatal(prefix string, err error) {
	fmt.Fprintln(os.Stderr, prefix, err)
	os.Exit(1)
}
