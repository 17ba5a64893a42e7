package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dane "github.com/ErwanLegrand/ssl-dane"
)

var (
	genCert     string
	genUsage    uint8
	genSelector uint8
	genMtype    uint8
	genOwner    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print a DNS zone-file TLSA record line for a certificate",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genCert, "cert", "", "PEM certificate file (required)")
	generateCmd.Flags().Uint8Var(&genUsage, "usage", dane.DaneTA, "TLSA usage (0=PKIX-TA 1=PKIX-EE 2=DANE-TA 3=DANE-EE)")
	generateCmd.Flags().Uint8Var(&genSelector, "selector", dane.SelectorSPKI, "TLSA selector (0=full cert 1=SPKI)")
	generateCmd.Flags().Uint8Var(&genMtype, "mtype", 1, "TLSA matching type (0=full 1=SHA-256 2=SHA-512)")
	generateCmd.Flags().StringVar(&genOwner, "owner", "", "owner name for the zone line, e.g. _443._tcp.example.com.")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if genCert == "" {
		return fmt.Errorf("--cert is required")
	}
	cert, err := loadPEMCertificate(genCert)
	if err != nil {
		return err
	}
	rec, err := dane.GenerateTLSARecord(cert, genUsage, genSelector, genMtype, genOwner)
	if err != nil {
		return fmt.Errorf("generating TLSA record: %w", err)
	}
	fmt.Println(dane.GenerateZoneLine(rec))
	return nil
}
