// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/gogama/s3x"
	"github.com/gogama/s3x/body"
	"github.com/gogama/s3x/config"
	"github.com/gogama/s3x/request"
	"github.com/gogama/s3x/signer"
	"github.com/gogama/s3x/tracing"
	"github.com/gogama/s3x/unmarshal"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// op is the original call object of each request. Its marker is
// appended to the User-Agent.
type op string

func (o op) ClientMarker() string {
	return "s3call/" + string(o)
}

type app struct {
	cfgFile  string
	endpoint string
	verbose  bool

	cfg    *config.Config
	logger *zerolog.Logger
	client *s3x.Client
	ec     *s3x.ExecutionContext
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "s3call",
		Short:        "Make single calls to an S3-compatible service",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init(errOut)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.endpoint, "endpoint", "", "service endpoint, overriding the config")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log each attempt")
	root.AddCommand(a.getCmd(), a.putCmd(), a.headCmd(), a.deleteCmd())
	return root
}

func (a *app) init(errOut io.Writer) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.endpoint != "" {
		cfg.Endpoint = a.endpoint
	}
	if cfg.Endpoint == "" {
		return errors.New("s3call: no endpoint configured")
	}
	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	a.logger = config.NewLogger(errOut, level, cfg.Log.Pretty)

	creds, err := cfg.CredentialsProvider()
	if err != nil {
		return err
	}
	sink, err := cfg.MetricsSink(nil)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.client = cfg.NewClient(a.logger)
	a.ec = &s3x.ExecutionContext{
		Signer:      &signer.S3Signer{Logger: a.logger},
		Credentials: creds,
		Handlers:    s3x.NewHandlerChain(tracing.NewInterceptor(nil)),
		Metrics:     sink,
	}
	return nil
}

func (a *app) newRequest(method, path string, o op) (*request.Request, error) {
	r, err := request.New(method, a.cfg.Endpoint, strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	r.ServiceName = a.cfg.ServiceName
	r.Original = o
	return r, nil
}

func (a *app) logMetadata(o op) {
	if md, ok := a.client.ResponseMetadata(o); ok {
		a.logger.Debug().
			Str("request_id", md.RequestID).
			Str("host_id", md.HostID).
			Msg("Response metadata")
	}
}

func (a *app) getCmd() *cobra.Command {
	var output, byteRange string
	var verify bool
	cmd := &cobra.Command{
		Use:   "get BUCKET/KEY",
		Short: "Download an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRequest("GET", args[0], "get")
			if err != nil {
				return err
			}
			if byteRange != "" {
				r.SetHeader("Range", byteRange)
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrap(err, "s3call: creating output")
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if verify && byteRange == "" {
				b, err := s3x.Execute(cmd.Context(), a.client, r, unmarshal.MD5Check(unmarshal.Bytes), unmarshal.XMLError, a.ec)
				if err != nil {
					return err
				}
				a.logMetadata("get")
				_, err = w.Write(b)
				return err
			}

			rc, err := s3x.Execute(cmd.Context(), a.client, r, unmarshal.Stream, unmarshal.XMLError, a.ec)
			if err != nil {
				return err
			}
			defer func() { _ = rc.Close() }()
			a.logMetadata("get")
			_, err = io.Copy(w, rc)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the object to this file instead of stdout")
	cmd.Flags().StringVar(&byteRange, "range", "", "HTTP Range header, for example bytes=0-99")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the object against its MD5 ETag")
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	var file, contentType string
	var meta map[string]string
	cmd := &cobra.Command{
		Use:   "put BUCKET/KEY",
		Short: "Upload an object from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRequest("PUT", args[0], "put")
			if err != nil {
				return err
			}
			if file != "" {
				c, err := body.NewFile(file, 0)
				if err != nil {
					return err
				}
				defer func() { _ = c.Close() }()
				r.Content = c
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "s3call: reading stdin")
				}
				r.Content = body.NewBytes(b)
			}
			if contentType != "" {
				r.SetHeader("Content-Type", contentType)
			}
			for k, v := range meta {
				r.SetHeader("x-amz-meta-"+k, v)
			}

			md, err := s3x.Execute(cmd.Context(), a.client, r, unmarshal.Headers, unmarshal.XMLError, a.ec)
			if err != nil {
				return err
			}
			a.logMetadata("put")
			return printJSON(cmd.OutOrStdout(), md)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "upload this file instead of stdin")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content-Type of the object")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "user metadata, as key=value pairs")
	return cmd
}

func (a *app) headCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "head BUCKET/KEY",
		Short: "Print an object's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRequest("HEAD", args[0], "head")
			if err != nil {
				return err
			}
			md, err := s3x.Execute(cmd.Context(), a.client, r, unmarshal.Headers, unmarshal.XMLError, a.ec)
			if err != nil {
				return err
			}
			a.logMetadata("head")
			return printJSON(cmd.OutOrStdout(), md)
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete BUCKET/KEY",
		Short: "Delete an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newRequest("DELETE", args[0], "delete")
			if err != nil {
				return err
			}
			_, err = s3x.Execute(cmd.Context(), a.client, r, unmarshal.Bytes, unmarshal.XMLError, a.ec)
			if err != nil {
				return err
			}
			a.logMetadata("delete")
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
