package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleardeed/diligence-cli/internal/model"
)

var (
	importProperty string
	importDocType  string
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import extracted document text for a property",
	Long:  "Loads pre-extracted text files as completed documents. The document type is taken from --type, or guessed from the filename when omitted.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := validateAndInit(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close()

		docs := make([]model.Document, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}

			docType := model.DocumentType(importDocType)
			if importDocType == "" {
				docType = guessDocumentType(path)
			}

			docs = append(docs, model.Document{
				PropertyID:    importProperty,
				Type:          docType,
				Filename:      filepath.Base(path),
				ExtractedText: string(data),
				Status:        model.DocStatusCompleted,
			})
		}

		n, err := st.ImportDocuments(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "import documents")
		}

		zap.L().Info("import complete",
			zap.Int64("documents", n),
			zap.String("property_id", importProperty))
		return nil
	},
}

// guessDocumentType infers the document type from the filename.
func guessDocumentType(path string) model.DocumentType {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "deed") || strings.Contains(name, "title"):
		return model.DocTitleDeed
	case strings.Contains(name, "agreement") || strings.Contains(name, "contract") || strings.Contains(name, "sale"):
		return model.DocSaleAgreement
	default:
		return model.DocOther
	}
}

func init() {
	importCmd.Flags().StringVar(&importProperty, "property", "", "property ID (required)")
	importCmd.Flags().StringVar(&importDocType, "type", "", "document type (title_deed|sale_agreement|other)")
	_ = importCmd.MarkFlagRequired("property")
	rootCmd.AddCommand(importCmd)
}
