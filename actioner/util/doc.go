// Small helpers shared by the action evaluator packages.
package util
