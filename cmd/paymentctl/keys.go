package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"paymenthub/internal/auth"
	"paymenthub/internal/cipher"

	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA key pair for the switch (base64 DER)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bits, _ := cmd.Flags().GetInt("bits")
			priv, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return err
			}
			pub, err := cipher.MarshalPublicKey(&priv.PublicKey)
			if err != nil {
				return err
			}
			private, err := cipher.MarshalPrivateKey(priv)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SWITCH_PUBLIC_KEY=%s\n", pub)
			fmt.Fprintf(out, "SWITCH_PRIVATE_KEY=%s\n", private)
			return nil
		},
	}
	cmd.Flags().Int("bits", 2048, "RSA modulus size")
	return cmd
}

func aeskeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aeskey",
		Short: "Generate a random 256-bit AES key (base64)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cipher.NewKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(key))
			return nil
		},
	}
}

func hashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [clientId] [secret]",
		Short: "Print a CLIENT_CREDENTIALS entry for a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashSecret(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", args[0], hash)
			return nil
		},
	}
}
