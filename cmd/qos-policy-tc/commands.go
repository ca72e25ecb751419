package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/compiler"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/server"
)

func newRootCommand(ctx context.Context) *cobra.Command {
	opts := server.NewOptions()

	root := &cobra.Command{
		Use:   "qos-policy-tc",
		Short: "Compile qos policies into Linux traffic control objects",
		Long: `qos-policy-tc reads a qos configuration, made of policies, traffic match groups
and interface bindings, and keeps the tc qdiscs, classes and filters of every bound
interface in sync with it.`,
		SilenceUsage: true,
	}
	server.AddLogFlags(root.PersistentFlags())

	run := &cobra.Command{
		Use:   "run",
		Short: "Watch the configuration file and keep tc in sync with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.NewServer(opts)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	opts.AddFlags(run.Flags())

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply the configuration file once",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.NewServer(opts)
			if err != nil {
				return err
			}
			err = srv.SyncOnce(ctx)
			reportValidation(cmd.ErrOrStderr(), err)
			return err
		},
	}
	opts.AddFlags(apply.Flags())

	compile := &cobra.Command{
		Use:   "compile",
		Short: "Print the tc commands of the configuration file without applying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := compileOnly(opts)
			reportValidation(cmd.ErrOrStderr(), err)
			if err != nil {
				return err
			}
			reportWarnings(cmd.ErrOrStderr(), res)
			printCommands(cmd.OutOrStdout(), res)
			return nil
		},
	}
	opts.AddConfigFlags(compile.Flags())

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := compileOnly(opts)
			reportValidation(cmd.ErrOrStderr(), err)
			if err != nil {
				return err
			}
			reportWarnings(cmd.ErrOrStderr(), res)
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %d interface bindings\n", len(res.Objects))
			return nil
		},
	}
	opts.AddConfigFlags(validate.Flags())

	root.AddCommand(run, apply, compile, validate)
	return root
}

func compileOnly(opts *server.Options) (*compiler.Result, error) {
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, err
	}
	return srv.Compile()
}

// reportValidation prints every failure of a validation error, one per line
func reportValidation(w io.Writer, err error) {
	var verr *policy.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	for _, fe := range verr.Errors {
		fmt.Fprintf(w, "error: %s\n", fe.Error())
	}
}

func reportWarnings(w io.Writer, res *compiler.Result) {
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.String())
	}
}

func printCommands(w io.Writer, res *compiler.Result) {
	klog.V(4).InfoS("printing tc commands", "pass", res.Pass)
	for _, objs := range res.Objects {
		fmt.Fprintf(w, "# interface %s %s policy %s\n", objs.Interface, objs.Direction, objs.Policy)
		for _, line := range objs.Render() {
			fmt.Fprintln(w, line)
		}
	}
}
