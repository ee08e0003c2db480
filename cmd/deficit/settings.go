// ABOUTME: CLI commands for the profile, BMR mode and AI endpoint settings.
// ABOUTME: settings prints the current record with the API key redacted.
package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/models"
)

var (
	profileGender    string
	profileAge       int
	profileHeight    float64
	profileWeight    float64
	profileTarget    int
	profileManualBMR int
	profileFormula   bool

	aiKey     string
	aiBaseURL string
	aiModel   string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := ledg.Settings.Get()
		if err != nil {
			return err
		}
		printSettings(s)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Set your body profile and goals",
	Long: `Set the measurements used to compute your BMR, and your daily target.

On first use gender, age, height and weight are required. Afterwards any
flag you omit keeps its current value.

BMR is computed with Mifflin-St Jeor unless you supply --manual-bmr. Once in
manual mode the manual value is kept across profile edits; pass --formula
to switch back.

EXAMPLES:

  deficit profile --gender female --age 28 --height 165 --weight 60
  deficit profile --weight 78.5            # Update weight only
  deficit profile --target 750             # New daily deficit goal
  deficit profile --manual-bmr 1800        # Use a measured BMR
  deficit profile --formula                # Back to the formula`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := mergeProfile(cmd)
		if err != nil {
			return err
		}

		var opts ledger.ProfileOptions
		if cmd.Flags().Changed("target") {
			if profileTarget < 0 {
				return errors.New("target must not be negative")
			}
			opts.TargetDeficit = &profileTarget
		}
		if cmd.Flags().Changed("manual-bmr") {
			if profileManualBMR < minBMR || profileManualBMR > maxBMR {
				return fmt.Errorf("BMR must be between %d and %d", minBMR, maxBMR)
			}
			manual := true
			opts.ManualBMR = &profileManualBMR
			opts.UseManualBMR = &manual
		} else if profileFormula {
			formula := false
			opts.UseManualBMR = &formula
		}

		s, err := ledg.Settings.SaveProfile(p, opts)
		if err != nil {
			return err
		}
		color.Green("✓ Profile saved")
		fmt.Printf("  BMR %d (%s), target deficit %d\n", s.Computed.BMR, bmrMode(s), s.Goals.TargetDeficit)
		return nil
	},
}

// mergeProfile overlays the changed flags onto the stored profile.
func mergeProfile(cmd *cobra.Command) (models.Profile, error) {
	var p models.Profile
	existing, err := ledg.Settings.Get()
	switch {
	case err == nil:
		p = existing.Profile
	case !errors.Is(err, ledger.ErrConfigMissing):
		return p, err
	}

	flags := cmd.Flags()
	if flags.Changed("gender") {
		p.Gender = models.Gender(profileGender)
	}
	if flags.Changed("age") {
		p.Age = profileAge
	}
	if flags.Changed("height") {
		p.Height = profileHeight
	}
	if flags.Changed("weight") {
		p.Weight = profileWeight
	}
	return p, nil
}

var modeCmd = &cobra.Command{
	Use:   "mode <manual|formula>",
	Short: "Switch between manual and formula BMR",
	Long: `Switch how new days get their BMR.

Switching applies to today's balance immediately (if today exists) and to
every day created afterwards. Past days keep the BMR they were created with.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"manual", "formula"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var useManual bool
		switch args[0] {
		case "manual":
			useManual = true
		case "formula":
		default:
			return fmt.Errorf("unknown mode: %s (use manual or formula)", args[0])
		}

		s, err := ledg.Settings.UpdateBMRSettings(useManual)
		if err != nil {
			return err
		}
		color.Green("✓ BMR mode: %s", bmrMode(s))
		fmt.Printf("  BMR %d\n", s.Computed.BMR)
		return nil
	},
}

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Configure the vision endpoint",
	Long: `Configure the OpenAI-compatible endpoint used to analyze photos.

Only the flags you pass are changed.

EXAMPLES:

  deficit ai --key sk-...
  deficit ai --base-url https://openrouter.ai/api/v1 --model openai/gpt-4o`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch ledger.AIConfigPatch
		if cmd.Flags().Changed("key") {
			patch.APIKey = &aiKey
		}
		if cmd.Flags().Changed("base-url") {
			patch.BaseURL = &aiBaseURL
		}
		if cmd.Flags().Changed("model") {
			patch.Model = &aiModel
		}
		if patch.APIKey == nil && patch.BaseURL == nil && patch.Model == nil {
			return errors.New("nothing to change: pass --key, --base-url or --model")
		}

		s, err := ledg.Settings.UpdateAIConfig(patch)
		if err != nil {
			return err
		}
		color.Green("✓ AI endpoint updated")
		printAI(s.AIConfig)
		return nil
	},
}

func bmrMode(s models.UserSettings) string {
	if s.BMRSettings.UseManualBMR {
		return "manual"
	}
	return "formula"
}

func printAI(c models.AIConfig) {
	c = c.Redacted()
	fmt.Printf("  Endpoint  %s\n", c.BaseURL)
	fmt.Printf("  Model     %s\n", c.Model)
	key := c.APIKey
	if key == "" {
		key = faint.Sprint("(not set)")
	}
	fmt.Printf("  API key   %s\n", key)
}

func printSettings(s models.UserSettings) {
	fmt.Println(color.New(color.Bold).Sprint("Profile"))
	fmt.Printf("  %s, %d years, %.0f cm, %.1f kg\n", s.Profile.Gender, s.Profile.Age, s.Profile.Height, s.Profile.Weight)
	fmt.Printf("  BMR %d (%s)\n", s.Computed.BMR, bmrMode(s))
	fmt.Printf("  Target deficit %d\n", s.Goals.TargetDeficit)
	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprint("AI"))
	printAI(s.AIConfig)
}

func init() {
	profileCmd.Flags().StringVar(&profileGender, "gender", "", "male or female")
	profileCmd.Flags().IntVar(&profileAge, "age", 0, "age in years")
	profileCmd.Flags().Float64Var(&profileHeight, "height", 0, "height in cm")
	profileCmd.Flags().Float64Var(&profileWeight, "weight", 0, "weight in kg")
	profileCmd.Flags().IntVar(&profileTarget, "target", 0, "daily target deficit in kcal")
	profileCmd.Flags().IntVar(&profileManualBMR, "manual-bmr", 0, "use this BMR instead of the formula")
	profileCmd.Flags().BoolVar(&profileFormula, "formula", false, "switch back to the formula BMR")
	profileCmd.MarkFlagsMutuallyExclusive("manual-bmr", "formula")

	aiCmd.Flags().StringVar(&aiKey, "key", "", "API key")
	aiCmd.Flags().StringVar(&aiBaseURL, "base-url", "", "endpoint base URL")
	aiCmd.Flags().StringVar(&aiModel, "model", "", "vision model name")

	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(aiCmd)
}
