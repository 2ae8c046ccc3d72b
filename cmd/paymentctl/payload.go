package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"paymenthub/internal/cipher"

	"github.com/spf13/cobra"
)

func encryptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encrypt [json]",
		Short: "Encrypt a terminal request with the client key",
		Long: `Encrypt a JSON payload with the client AES key and print the request body
for POST /v1/transaction. The payload is read from stdin when no argument
is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := channelFromFlags(cmd)
			if err != nil {
				return err
			}
			plain, err := input(cmd, args)
			if err != nil {
				return err
			}
			if !json.Valid(plain) {
				return errors.New("payload is not valid JSON")
			}
			encrypted, err := ch.Encrypt(plain)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"encryptedPayload": encrypted})
		},
	}
	cmd.Flags().StringP("key", "k", "", "base64 AES-256 key (default $CLIENT_AES_KEY)")
	return cmd
}

func decryptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt [ciphertext]",
		Short: "Decrypt an encryptedResponse with the client key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := channelFromFlags(cmd)
			if err != nil {
				return err
			}
			encoded, err := input(cmd, args)
			if err != nil {
				return err
			}
			plain, err := ch.Decrypt(strings.TrimSpace(string(encoded)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(plain))
			return nil
		},
	}
	cmd.Flags().StringP("key", "k", "", "base64 AES-256 key (default $CLIENT_AES_KEY)")
	return cmd
}

func channelFromFlags(cmd *cobra.Command) (*cipher.Channel, error) {
	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = os.Getenv("CLIENT_AES_KEY")
	}
	if key == "" {
		return nil, errors.New("no key: pass --key or set CLIENT_AES_KEY")
	}
	return cipher.NewChannelFromBase64(key)
}

func input(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	return io.ReadAll(cmd.InOrStdin())
}
