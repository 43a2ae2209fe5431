// Command fetch performs a single HTTP transfer and reports the result,
// the captured wire trace and the transfer counters.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/luizaranda/go-fetch/pkg/fetch"
	"github.com/luizaranda/go-fetch/pkg/fetch/httpengine"
	"github.com/luizaranda/go-fetch/pkg/log"
)

type options struct {
	method    string
	headers   []string
	data      string
	timeout   int64
	proxy     string
	caBundle  string
	connectTo string
	follow    bool
	http2     bool
	fastOpen  bool
	verbose   bool
	certInfo  bool
	include   bool
	debug     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "fetch URL",
		Short:         "perform one HTTP transfer",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "request", "X", "", "custom request method")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "extra header line, repeatable")
	flags.StringVarP(&opts.data, "data", "d", "", "request body, implies POST")
	flags.Int64Var(&opts.timeout, "timeout", fetch.DefaultTimeoutSeconds, "whole-transfer timeout in seconds, 0 for none")
	flags.StringVar(&opts.proxy, "proxy", "", "proxy URL")
	flags.StringVar(&opts.caBundle, "cacert", "", "CA bundle path")
	flags.StringVar(&opts.connectTo, "connect-to", "", "HOST:PORT:CONNECT-HOST:CONNECT-PORT connection override")
	flags.BoolVarP(&opts.follow, "location", "L", false, "follow redirects")
	flags.BoolVar(&opts.http2, "http2", false, "prefer HTTP/2 over TLS")
	flags.BoolVar(&opts.fastOpen, "fastopen", false, "attempt TCP fast open")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print the captured wire trace")
	flags.BoolVar(&opts.certInfo, "certinfo", false, "capture and print the peer certificate chain")
	flags.BoolVarP(&opts.include, "include", "i", false, "print response headers before the body")
	flags.BoolVar(&opts.debug, "debug", false, "client debug logging to stderr")
	return cmd
}

func run(ctx context.Context, rawurl string, opts options) error {
	req := fetch.NewRequest(rawurl)
	for _, line := range opts.headers {
		req.AddHeader(line)
	}
	if opts.data != "" {
		req.SetMethod(fetch.MethodPost).SetBody([]byte(opts.data))
	}
	if opts.method != "" {
		switch strings.ToUpper(opts.method) {
		case "POST":
			req.SetMethod(fetch.MethodPost)
		case "PUT":
			req.SetMethod(fetch.MethodPut)
		case "GET":
			req.SetMethod(fetch.MethodGet)
		default:
			return fmt.Errorf("unsupported method %q", opts.method)
		}
	}
	req.SetTimeout(opts.timeout)
	if opts.proxy != "" {
		req.SetProxyURL(opts.proxy)
	}
	if opts.caBundle != "" {
		req.SetCABundlePath(opts.caBundle)
	}
	if opts.connectTo != "" {
		req.SetConnectTo(opts.connectTo)
	}
	if opts.follow {
		req.EnableFollowRedirects()
	}
	if opts.http2 {
		req.EnableHTTP2()
	}
	if opts.fastOpen {
		req.EnableTCPFastOpen()
	}

	var clientOpts []fetch.ClientOption
	if opts.debug {
		clientOpts = append(clientOpts, fetch.WithLogger(log.NewProductionLogger(log.DebugLevel)))
	}
	client := fetch.NewClient(httpengine.New(), clientOpts...)

	res := client.Perform(ctx, req)
	report(res, opts)
	if !res.Succeeded() {
		return fmt.Errorf("transfer failed: code %s, status %d", res.Code, res.StatusCode)
	}
	return nil
}

func report(res *fetch.Response, opts options) {
	if opts.verbose {
		fmt.Fprint(os.Stderr, res.LogsString())
	}

	statusLine := color.New(color.FgGreen)
	if res.Code != fetch.CodeOK || res.StatusCode >= 400 {
		statusLine = color.New(color.FgRed)
	}
	statusLine.Fprintf(os.Stderr, "code=%s status=%d version=%s sent=%d recv=%d\n",
		res.Code, res.StatusCode, res.HTTPVersion, res.BytesSent, res.BytesRecv)
	if res.RedirectURL != "" {
		fmt.Fprintf(os.Stderr, "redirect: %s\n", res.RedirectURL)
	}
	if opts.certInfo && res.CertificateChain != "" {
		fmt.Fprint(os.Stderr, res.CertificateChain)
	}

	if opts.include {
		os.Stderr.WriteString(res.ResponseHeadersString())
	}
	os.Stdout.Write(res.Body)
}
