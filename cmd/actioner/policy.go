package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/hma-go/actioner/actioner/labels"
	"github.com/hma-go/actioner/actioner/policy"
	"github.com/hma-go/actioner/actioner/rulestore"

	cli "github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

var policyCmd = &cli.Command{
	Name:  "policy",
	Usage: "sub-commands for policy documents",
	Subcommands: []*cli.Command{
		policyCheckCmd,
		policyPushCmd,
	},
}

var policyCheckCmd = &cli.Command{
	Name:      "check",
	Usage:     "validate a JSON policy document, and print it as a tree",
	ArgsUsage: "<policy.json>",
	Action: func(cctx *cli.Context) error {
		p := cctx.Args().First()
		if p == "" {
			return fmt.Errorf("need to provide policy document path as an argument")
		}
		snap, err := (&rulestore.FileStore{Path: p}).Load(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Print(policyTree(p, snap).String())
		return nil
	},
}

var policyPushCmd = &cli.Command{
	Name:      "push",
	Usage:     "validate a JSON policy document, and store it in redis for running services to load",
	ArgsUsage: "<policy.json>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "policy-redis-url",
			Required: true,
			EnvVars:  []string{"ACTIONER_POLICY_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "policy-redis-key",
			Value:   rulestore.DefaultRedisKey,
			EnvVars: []string{"ACTIONER_POLICY_REDIS_KEY"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		p := cctx.Args().First()
		if p == "" {
			return fmt.Errorf("need to provide policy document path as an argument")
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if _, err := policy.ParseSnapshotJSON(raw); err != nil {
			return err
		}
		rs, err := rulestore.NewRedisStore(cctx.String("policy-redis-url"), cctx.String("policy-redis-key"), time.Minute)
		if err != nil {
			return err
		}
		if err := rs.Put(ctx, raw); err != nil {
			return err
		}
		fmt.Printf("stored policy document at key %s\n", cctx.String("policy-redis-key"))
		return nil
	},
}

func labelList(ls []labels.Label) string {
	if len(ls) == 0 {
		return "(none)"
	}
	out := ""
	for i, l := range ls {
		if i > 0 {
			out += ", "
		}
		out += l.String()
	}
	return out
}

func policyTree(name string, snap *policy.Snapshot) treeprint.Tree {
	tree := treeprint.NewWithRoot(name)

	rules := tree.AddMetaBranch(len(snap.Rules), "rules")
	for i, r := range snap.Rules {
		rname := r.Name
		if rname == "" {
			rname = fmt.Sprintf("rule-%d", i)
		}
		rb := rules.AddMetaBranch(r.ActionLabel.String(), rname)
		rb.AddMetaNode("must have", labelList(r.MustHaveLabels))
		rb.AddMetaNode("must not have", labelList(r.MustNotHaveLabels))
	}

	// map iteration order is random; print by priority, then label
	actions := make([]policy.Action, 0, len(snap.Actions))
	for _, a := range snap.Actions {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].Priority != actions[j].Priority {
			return actions[i].Priority < actions[j].Priority
		}
		return actions[i].ActionLabel.String() < actions[j].ActionLabel.String()
	})
	ab := tree.AddMetaBranch(len(actions), "actions")
	for _, a := range actions {
		node := ab.AddMetaBranch(fmt.Sprintf("priority=%d", a.Priority), a.ActionLabel.String())
		if len(a.SupersededByActionLabels) > 0 {
			node.AddMetaNode("supersedes", labelList(a.SupersededByActionLabels))
		}
	}

	rs := snap.Reactions
	reb := tree.AddMetaBranch(fmt.Sprintf("enabled=%t", rs.Enabled), "reactions")
	collabs := make([]string, 0, len(rs.Collaborations))
	for c := range rs.Collaborations {
		collabs = append(collabs, c)
	}
	sort.Strings(collabs)
	for _, c := range collabs {
		reb.AddMetaNode(fmt.Sprintf("enabled=%t", rs.Collaborations[c]), "collaboration "+c)
	}
	for _, rr := range rs.Rules {
		rb := reb.AddMetaBranch(rr.ReactionLabel.String(), "rule")
		rb.AddMetaNode("must have", labelList(rr.MustHaveLabels))
		rb.AddMetaNode("any action", labelList(rr.ActionLabels))
	}
	if len(rs.Rules) == 0 {
		reb.AddMetaNode("default", labelList(rs.DefaultReactions))
	}
	return tree
}
