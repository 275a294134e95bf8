package cmd

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"smartpay/ledger"
)

var settleInputPath string
var settleOutputPath string

func settleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settle",
		Short:   "settle a trip from a CSV of balances",
		Long:    `Reads a CSV of per-person balances (name, owes, owed) and writes the minimal reimbursement payments as CSV. Useful for settling a trip offline, without the server.`,
		Example: `smartpay settle --input balances.csv --output payments.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if settleInputPath == "" || settleOutputPath == "" {
				return cmd.Help()
			}

			inputFile, err := os.Open(settleInputPath)
			if err != nil {
				return err
			}
			defer func(inputFile *os.File) {
				err := inputFile.Close()
				if err != nil {
					log.Fatalf("Failed to close input file: %v", err)
				}
			}(inputFile)

			csvContent, err := csv.NewReader(inputFile).ReadAll()
			if err != nil {
				return err
			}

			positions, names, err := ParseCSVToPositions(csvContent)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if len(positions) == 0 {
				return fmt.Errorf("no balances found in the CSV")
			}

			transfers, unclaimed, err := ledger.PlanTransfers(ledger.NormalizePositions(positions))
			if err != nil {
				return fmt.Errorf("failed to plan transfers: %w", err)
			}
			if unclaimed > 0 {
				fmt.Printf("Warning: %.2f owed in total has no creditor to receive it\n", unclaimed)
			}

			outputFile, err := os.Create(settleOutputPath)
			if err != nil {
				return err
			}
			defer func(outputFile *os.File) {
				err := outputFile.Close()
				if err != nil {
					log.Fatalf("Failed to close output file: %v", err)
				}
			}(outputFile)

			writer := csv.NewWriter(outputFile)
			if err := writer.Write([]string{"from", "to", "amount"}); err != nil {
				return err
			}
			for _, transfer := range transfers {
				row := []string{
					names[transfer.From],
					names[transfer.To],
					strconv.FormatFloat(transfer.Amount, 'f', 2, 64),
				}
				if err := writer.Write(row); err != nil {
					return err
				}
			}
			writer.Flush()
			return writer.Error()
		},
	}

	cmd.Flags().StringVarP(&settleInputPath, "input", "i", "", "csv input file path (required)")
	err := cmd.MarkFlagRequired("input")
	if err != nil {
		log.Fatal(err)
		return nil
	}
	cmd.Flags().StringVarP(&settleOutputPath, "output", "o", "", "csv output file path (required)")
	err = cmd.MarkFlagRequired("output")
	if err != nil {
		log.Fatal(err)
		return nil
	}

	return cmd
}

// ParseCSVToPositions turns CSV rows of (name, owes, owed) into cash
// positions. The first row is treated as a header. The returned map
// translates the generated member IDs back to names.
func ParseCSVToPositions(csvContent [][]string) ([]ledger.CashPosition, map[uuid.UUID]string, error) {
	if len(csvContent) == 0 {
		return nil, nil, fmt.Errorf("CSV is empty")
	}

	// skip the header row
	dataRows := csvContent[1:]

	positions := make([]ledger.CashPosition, 0, len(dataRows))
	names := make(map[uuid.UUID]string, len(dataRows))
	seen := make(map[string]bool, len(dataRows))
	for i, row := range dataRows {
		if len(row) != 3 {
			return nil, nil, fmt.Errorf("row %d: expected 3 columns, but got %d", i+2, len(row)) // +2 to account for the header row
		}

		name := strings.TrimSpace(row[0])
		if name == "" {
			return nil, nil, fmt.Errorf("row %d: name is empty", i+2)
		}
		if seen[name] {
			return nil, nil, fmt.Errorf("row %d: duplicate name %q", i+2, name)
		}
		seen[name] = true

		owes, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: failed to convert owes '%s' to float: %w", i+2, row[1], err)
		}
		owed, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: failed to convert owed '%s' to float: %w", i+2, row[2], err)
		}
		if owes < 0 || owed < 0 {
			return nil, nil, fmt.Errorf("row %d: amounts must not be negative", i+2)
		}

		id := uuid.New()
		names[id] = name
		positions = append(positions, ledger.CashPosition{
			MemberID: id,
			Owes:     owes,
			Owed:     owed,
		})
	}

	return positions, names, nil
}
