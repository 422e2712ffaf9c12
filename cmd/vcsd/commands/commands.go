// Package commands builds the vcsd subcommand tree: one cobra command
// per spec.md §6 boundary operation, each opening the repository,
// calling the matching dispatch.Dispatcher method, and closing it
// again — grounded on the teacher's commands.APIList(db, txPool, cfg,
// nil) pattern (cmd/rpcdaemon/main.go) of building a flat method table
// over the underlying engine, adapted here to cobra leaves instead of
// RPC methods since spec.md scopes the wire transport out of the core.
package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/biscuitwizard/vcscore/dispatch"
	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/repo"
)

// withDispatcher opens cfg's repository, runs fn against a freshly
// wired Dispatcher, and always closes the repository afterward —
// every leaf command is a single independent invocation, there is no
// long-lived server process here (spec.md §1's transport is out of
// scope; this binary only demonstrates the boundary calls).
func withDispatcher(cfg *repo.Config, fn func(*dispatch.Dispatcher) error) error {
	r, err := repo.Open(*cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(dispatch.New(r, dispatch.AllowAll))
}

// userFlag is the --user value every mutating leaf reads and forwards
// as the caller's user-id, standing in for whatever authentication
// wraps this binary in a real deployment.
func userFlag(cmd *cobra.Command) string {
	u, _ := cmd.Flags().GetString("user")
	return u
}

func addUserFlag(cmd *cobra.Command) {
	cmd.Flags().String("user", "local", "caller user-id forwarded to the authorize hook")
}

// Attach wires every spec.md §6 operation as a subcommand of root.
func Attach(root *cobra.Command, cfg *repo.Config) {
	root.AddCommand(objectCommands(cfg), metaCommands(cfg), changeCommands(cfg), indexCommands(cfg))
}

func objectCommands(cfg *repo.Config) *cobra.Command {
	group := &cobra.Command{Use: "object", Short: "object.* boundary operations"}

	get := &cobra.Command{
		Use:  "get [name]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var version *uint64
			if v, _ := cmd.Flags().GetUint64("version"); v != 0 {
				version = &v
			}
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				d2, ok, err := d.ObjectGet(args[0], version)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("object %q not found", args[0])
				}
				fmt.Println(string(dump.Canonicalize(d2)))
				return nil
			})
		},
	}
	get.Flags().Uint64("version", 0, "fetch a specific historical version instead of the current one")

	update := &cobra.Command{
		Use:  "update [name] [dump-text]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				digest, err := d.ObjectUpdate(userFlag(cmd), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Println(digest)
				return nil
			})
		},
	}
	addUserFlag(update)

	del := &cobra.Command{
		Use:  "delete [name]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.ObjectDelete(userFlag(cmd), args[0])
			})
		},
	}
	addUserFlag(del)

	rename := &cobra.Command{
		Use:  "rename [old-name] [new-name]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.ObjectRename(userFlag(cmd), args[0], args[1])
			})
		},
	}
	addUserFlag(rename)

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				keys, err := d.ObjectList(dump.TypeObject)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Println(k.Name)
				}
				return nil
			})
		},
	}

	group.AddCommand(get, update, del, rename, list)
	return group
}

func metaCommands(cfg *repo.Config) *cobra.Command {
	group := &cobra.Command{Use: "meta", Short: "meta.* boundary operations"}

	addProp := &cobra.Command{
		Use:  "add-ignored-prop [name] [property]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.MetaAddIgnoredProperty(userFlag(cmd), args[0], args[1])
			})
		},
	}
	addUserFlag(addProp)

	addVerb := &cobra.Command{
		Use:  "add-ignored-verb [name] [verb]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.MetaAddIgnoredVerb(userFlag(cmd), args[0], args[1])
			})
		},
	}
	addUserFlag(addVerb)

	removeProp := &cobra.Command{
		Use:  "remove-ignored-prop [name] [property]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.MetaRemoveIgnoredProperty(userFlag(cmd), args[0], args[1])
			})
		},
	}
	addUserFlag(removeProp)

	removeVerb := &cobra.Command{
		Use:  "remove-ignored-verb [name] [verb]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.MetaRemoveIgnoredVerb(userFlag(cmd), args[0], args[1])
			})
		},
	}
	addUserFlag(removeVerb)

	clear := &cobra.Command{
		Use:  "clear [name]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.MetaClear(userFlag(cmd), args[0])
			})
		},
	}
	addUserFlag(clear)

	group.AddCommand(addProp, addVerb, removeProp, removeVerb, clear)
	return group
}

func changeCommands(cfg *repo.Config) *cobra.Command {
	group := &cobra.Command{Use: "change", Short: "change.* boundary operations"}

	create := &cobra.Command{
		Use:  "create",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			external, _ := cmd.Flags().GetBool("external")
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				ch, err := d.ChangeCreate(userFlag(cmd), external)
				if err != nil {
					return err
				}
				fmt.Println(ch.ID)
				return nil
			})
		},
	}
	addUserFlag(create)
	create.Flags().Bool("external", false, "mark the author as an external (not registered) user")

	abandon := &cobra.Command{
		Use:  "abandon",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.ChangeAbandon(userFlag(cmd))
			})
		},
	}
	addUserFlag(abandon)

	stash := &cobra.Command{
		Use:  "stash",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.ChangeStash(userFlag(cmd))
			})
		},
	}
	addUserFlag(stash)

	sw := &cobra.Command{
		Use:  "switch [change-id]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				return d.ChangeSwitch(userFlag(cmd), args[0])
			})
		},
	}
	addUserFlag(sw)

	approve := &cobra.Command{
		Use:  "approve [change-id]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				_, err := d.ChangeApprove(userFlag(cmd), args[0])
				return err
			})
		},
	}
	addUserFlag(approve)

	submit := &cobra.Command{
		Use:  "submit [change-id]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				receipt, err := d.ChangeSubmit(context.Background(), userFlag(cmd), args[0])
				if err != nil {
					return err
				}
				fmt.Println(receipt.RemoteRef)
				return nil
			})
		},
	}
	addUserFlag(submit)

	status := &cobra.Command{
		Use:  "status",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				working, ok, stashed, err := d.ChangeStatus()
				if err != nil {
					return err
				}
				if ok {
					fmt.Println("working:", working)
				} else {
					fmt.Println("working: none")
				}
				for _, id := range stashed {
					fmt.Println("stashed:", id)
				}
				return nil
			})
		},
	}

	group.AddCommand(create, abandon, stash, sw, approve, submit, status)
	return group
}

func indexCommands(cfg *repo.Config) *cobra.Command {
	group := &cobra.Command{Use: "index", Short: "index.* boundary operations"}

	list := &cobra.Command{
		Use:  "list [from] [to]",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			to, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return err
			}
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				ids, err := d.IndexList(from, to)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			})
		},
	}

	calcDelta := &cobra.Command{
		Use:  "calc-delta [position]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withDispatcher(cfg, func(d *dispatch.Dispatcher) error {
				effects, err := d.IndexCalcDelta(pos)
				if err != nil {
					return err
				}
				for _, e := range effects {
					fmt.Printf("%s %s -> %s\n", e.RefKey.String(), e.PreDigest, e.PostDigest)
				}
				return nil
			})
		},
	}

	group.AddCommand(list, calcDelta)
	return group
}
