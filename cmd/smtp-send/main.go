// Package main is the entry point for the smtp-send command.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shineum/smtp-send-lite/internal/config"
	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/send"
	clienttls "github.com/shineum/smtp-send-lite/internal/tls"
	"github.com/shineum/smtp-send-lite/internal/transport"
	"github.com/shineum/smtp-send-lite/internal/transport/msgraph"
	"github.com/shineum/smtp-send-lite/internal/transport/ses"
	smtptransport "github.com/shineum/smtp-send-lite/internal/transport/smtp"
	"github.com/shineum/smtp-send-lite/internal/transport/stdout"
)

var (
	flagConfig   string
	flagLogLevel string

	flagFrom    string
	flagTo      []string
	flagCc      []string
	flagBcc     []string
	flagReplyTo []string

	flagSubject  string
	flagBody     string
	flagHTML     bool
	flagEncoding string
	flagPriority string
	flagNotify   []string
	flagAttach   []string

	flagServer    string
	flagPort      int
	flagUseSSL    bool
	flagUsername  string
	flagPassword  string
	flagTransport string
	flagDryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "smtp-send",
	Short: "Send one email message from the command line",
	Long: `smtp-send validates a declarative email description and performs a
single synchronous delivery attempt against one resolved transport target.

Invalid recipient addresses and unresolvable attachments are reported and
skipped without aborting the send; only an invalid sender or a missing
server is fatal.`,
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("send failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to YAML configuration file (optional)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.Flags().StringVarP(&flagFrom, "from", "f", "", "sender address")
	rootCmd.Flags().StringSliceVarP(&flagTo, "to", "t", nil, "recipient address (repeatable)")
	rootCmd.Flags().StringSliceVar(&flagCc, "cc", nil, "carbon copy address (repeatable)")
	rootCmd.Flags().StringSliceVar(&flagBcc, "bcc", nil, "blind carbon copy address (repeatable)")
	rootCmd.Flags().StringSliceVar(&flagReplyTo, "reply-to", nil, "reply-to address (repeatable)")

	rootCmd.Flags().StringVarP(&flagSubject, "subject", "s", "", "message subject")
	rootCmd.Flags().StringVarP(&flagBody, "body", "b", "", "message body, used verbatim")
	rootCmd.Flags().BoolVar(&flagHTML, "html", false, "send the body as text/html instead of text/plain")
	rootCmd.Flags().StringVar(&flagEncoding, "encoding", "", "character encoding for subject and body (default UTF-8)")
	rootCmd.Flags().StringVar(&flagPriority, "priority", "", "message priority: low, normal or high")
	rootCmd.Flags().StringSliceVar(&flagNotify, "notify", nil, "delivery notification: onsuccess, onfailure, delay or never (repeatable)")
	rootCmd.Flags().StringSliceVarP(&flagAttach, "attach", "a", nil, "attachment file path (repeatable)")

	rootCmd.Flags().StringVarP(&flagServer, "server", "S", "", "SMTP server (falls back to the configured default server)")
	rootCmd.Flags().IntVarP(&flagPort, "port", "P", 0, "SMTP port (0 = protocol default)")
	rootCmd.Flags().BoolVar(&flagUseSSL, "use-ssl", false, "require a TLS-secured session")
	rootCmd.Flags().StringVarP(&flagUsername, "username", "u", "", "authentication username")
	rootCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "authentication password")
	rootCmd.Flags().StringVar(&flagTransport, "transport", "", "delivery backend: smtp, ses, msgraph or stdout")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the message instead of delivering it")

	_ = rootCmd.MarkFlagRequired("from")
	_ = rootCmd.MarkFlagRequired("to")
	_ = rootCmd.MarkFlagRequired("subject")
}

func run(cmd *cobra.Command, _ []string) error {
	// A missing .env file is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := flagLogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	setupLogger(level)

	if flagPort < 0 {
		return fmt.Errorf("port must not be negative, got %d", flagPort)
	}

	priority, err := message.ParsePriority(flagPriority)
	if err != nil {
		return err
	}
	notify, err := message.ParseNotify(flagNotify)
	if err != nil {
		return err
	}
	charset, err := message.ParseCharset(flagEncoding)
	if err != nil {
		return err
	}

	tr, err := selectTransport(cfg)
	if err != nil {
		return err
	}

	pipeline, err := send.New(send.Config{
		Transport:   tr,
		Options:     transportOptions(cfg),
		DefaultHost: cfg.DefaultServer(),
		From:        flagFrom,
		To:          flagTo,
		Cc:          flagCc,
		Bcc:         flagBcc,
		ReplyTo:     flagReplyTo,
		Subject:     flagSubject,
		Body:        flagBody,
		HTML:        flagHTML,
		Charset:     charset,
		Priority:    priority,
		Notify:      notify,
	})
	if err != nil {
		return err
	}

	pipeline.AddAttachments(flagAttach)

	outcome := pipeline.Complete(cmd.Context())
	switch outcome.Status {
	case send.StatusSent:
		slog.Info("message sent",
			"message_id", pipeline.Message().ID,
			"transport", tr.Name(),
			"recipients", len(pipeline.Message().Recipients()),
		)
		return nil
	case send.StatusPartial:
		for _, rej := range outcome.Rejected {
			slog.Error("recipient rejected",
				"recipient", rej.Recipient,
				"error", rej.Err,
			)
		}
		return fmt.Errorf("delivery incomplete: %d of %d recipients failed",
			len(outcome.Rejected), len(pipeline.Message().Recipients()))
	default:
		return fmt.Errorf("delivery failed: %w", outcome.Err)
	}
}

// transportOptions merges explicit flags with configuration defaults. The
// explicit values always win; configured credentials apply only when no
// username was given on the command line.
func transportOptions(cfg *config.Config) transport.Options {
	port := flagPort
	if port == 0 {
		port = cfg.SMTP.Port
	}

	username, password := flagUsername, flagPassword
	if username == "" {
		username, password = cfg.SMTP.Username, cfg.SMTP.Password
	}
	var cred *transport.Credential
	if username != "" {
		cred = &transport.Credential{Username: username, Password: password}
	}

	return transport.Options{
		Host:       flagServer,
		Port:       port,
		UseTLS:     flagUseSSL,
		Credential: cred,
	}
}

// loadConfig loads configuration from the specified path (YAML + env
// override) or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectTransport chooses the delivery backend. An explicit flag or config
// value takes precedence; otherwise the backend is auto-detected from the
// configured credentials, falling back to plain SMTP.
func selectTransport(cfg *config.Config) (transport.Transport, error) {
	if flagDryRun {
		slog.Info("dry run, printing message to stdout")
		return stdout.New(), nil
	}

	name := flagTransport
	if name == "" {
		name = cfg.Transport
	}

	switch name {
	case "smtp":
		return newSMTPTransport(cfg)

	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("ses transport selected but SES_REGION is required")
		}
		slog.Info("using AWS SES transport", "region", cfg.SES.Region)
		return ses.New(context.Background(), ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})

	case "msgraph":
		if !cfg.GraphConfigured() {
			return nil, fmt.Errorf("msgraph transport selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID and GRAPH_CLIENT_SECRET are required")
		}
		slog.Info("using Microsoft Graph transport")
		return msgraph.New(msgraph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		}), nil

	case "stdout":
		return stdout.New(), nil

	case "":
		// Auto-detection: prefer an API backend when its credentials are
		// fully configured.
		if cfg.GraphConfigured() {
			slog.Info("using Microsoft Graph transport (auto-detected)")
			return msgraph.New(msgraph.Config{
				TenantID:     cfg.Graph.TenantID,
				ClientID:     cfg.Graph.ClientID,
				ClientSecret: cfg.Graph.ClientSecret,
			}), nil
		}
		if cfg.SESConfigured() {
			slog.Info("using AWS SES transport (auto-detected)", "region", cfg.SES.Region)
			return ses.New(context.Background(), ses.Config{
				Region:          cfg.SES.Region,
				AccessKeyID:     cfg.SES.AccessKeyID,
				SecretAccessKey: cfg.SES.SecretAccessKey,
			})
		}
		return newSMTPTransport(cfg)

	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

// newSMTPTransport builds the default SMTP backend with the configured
// TLS trust settings.
func newSMTPTransport(cfg *config.Config) (transport.Transport, error) {
	var opts []smtptransport.Option

	if cfg.TLS.CAFile != "" || cfg.TLS.Insecure {
		tlsCfg, err := clienttls.ClientConfig("", cfg.TLS.CAFile, cfg.TLS.Insecure)
		if err != nil {
			return nil, fmt.Errorf("failed to set up TLS: %w", err)
		}
		opts = append(opts, smtptransport.WithTLSConfig(tlsCfg))
	}
	if cfg.SMTP.HELO != "" {
		opts = append(opts, smtptransport.WithHELO(cfg.SMTP.HELO))
	}

	return smtptransport.New(opts...), nil
}
