package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mosaicnetworks/overlay/src/config"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	"github.com/mosaicnetworks/overlay/src/herder"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/mosaicnetworks/overlay/src/service"
	"github.com/spf13/cobra"
)

var (
	submitKeyFile string
	submitService string
	submitSeq     uint64
	submitFee     uint32
)

// NewSubmitCmd produces a command that reads payloads from stdin, one per
// line, and submits them as signed transactions through the HTTP service.
func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit transactions read from stdin",
		RunE:  submit,
	}

	AddSubmitFlags(cmd)

	return cmd
}

//AddSubmitFlags adds flags to the submit command
func AddSubmitFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&submitKeyFile, "key", filepath.Join(_config.Overlay.DataDir, config.DefaultKeyfile), "File containing the private key that signs the transactions")
	cmd.Flags().StringVarP(&submitService, "service", "s", _config.Overlay.ServiceAddr, "IP:Port of the HTTP service")
	cmd.Flags().Uint64Var(&submitSeq, "seq", 1, "Sequence number of the first transaction")
	cmd.Flags().Uint32Var(&submitFee, "fee", 10, "Fee of every transaction")
}

func submit(cmd *cobra.Command, args []string) error {
	key, err := keys.NewSimpleKeyfile(submitKeyFile).ReadKey()
	if err != nil {
		return err
	}

	client := service.NewClient(submitService, 10*time.Second)

	seq := submitSeq
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		tx, err := herder.NewSignedTxFrame(key, protocol.Tx{
			SeqNum:  seq,
			Fee:     submitFee,
			Payload: []byte(scanner.Text()),
		})
		if err != nil {
			return err
		}

		hash, err := client.SubmitTx(tx)
		if err != nil {
			fmt.Printf("Error in SubmitTx: %v\n", err)
			continue
		}

		fmt.Printf("%d %s\n", seq, hash)
		seq++
	}

	return scanner.Err()
}
