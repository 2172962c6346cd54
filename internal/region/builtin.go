package region

// builtinOLTs maps OLT label fragments to the city they serve.
var builtinOLTs = map[string]string{
	// Londrina
	"OLT-LDB-HUAWEI-DC":                 "Londrina",
	"OLT-LDB-HUAWEI-DC-02":              "Londrina",
	"OLT-LDB-HUAWEI-OSCAR":              "Londrina",
	"OLT-LDB-HUAWEI-ZONA-NORTE":         "Londrina",
	"OLT-LDB-HUAWEI-10-DEZEMBRO":        "Londrina",
	"OLT-LDB-HUAWEI-ANA-ROSA":           "Londrina",
	"OLT-LDB-HUAWEI-CATUAI":             "Londrina",
	"OLT-LDB-HUAWEI-COLUMBIA":           "Londrina",
	"OLT-LDB-HUAWEI-HU":                 "Londrina",
	"OLT-LDB-HUAWEI-PARK-UNIVERSITARIO": "Londrina",
	"OLT-LDB-HUAWEI-SPAZIO-LYON":        "Londrina",
	"OLT-LDB-HUAWEI-UTF-PR":             "Londrina",
	"OLT-LDB-HUAWEI-UTF-PR-2":           "Londrina",
	"OLT-LDB-FH-OSCAR":                  "Londrina",

	"OLT-JZN -HUAWEI-JATAIZINHO": "Jataizinho",
	"OLT-PNU-ZTE-PAICANDU-01":    "Paiçandu",

	// Maringá
	"OLT-MGF-ZTE-SERENITY-02":              "Maringá",
	"OLT-MGF-ZTE-GETULIO-03":               "Maringá",
	"OLT-MGF-PARKS-MUSCAT-54":              "Maringá",
	"OLT-MGF-PARKS-EDF-HAVANA-53":          "Maringá",
	"OLT-MGF-PARKS-EDF-SOLARIS-52":         "Maringá",
	"OLT-MGF-PARKS-EDF-HAVANA-51":          "Maringá",
	"OLT-MGF-PARKS-SUMARE-40":              "Maringá",
	"OLT-MGF-PARKS-EDF-PORTAL-JAPAO-16":    "Maringá",
	"OLT-MGF-PARKS-EDF-HAVANA-12":          "Maringá",
	"OLT-MGF-PARKS-EDF-HAVANA-11":          "Maringá",
	"OLT-MGF-PARKS-MUSCAT-10":              "Maringá",
	"OLT-MGF-PARKS-INFINITY-09":            "Maringá",
	"OLT-MGF-PARKS-MISATO-08":              "Maringá",
	"OLT-MGF-PARKS-MUSCAT-07":              "Maringá",
	"OLT-MGF-PARKS-DELTA-06":               "Maringá",
	"OLT-MGF-PARKS-DELTA-05":               "Maringá",
	"OLT-MGF-PARKS-ORIENTAL-04":            "Maringá",
	"OLT-MGF-PARKS-ORIENTAL-04---MIGRAÇÃO": "Maringá",
	"OLT-MGF-PARKS-MARINGA-02":             "Maringá",
	"OLT-MGF-PARKS-MARINGA-01":             "Maringá",
	"OLT-MGF-PARKS-TESTE":                  "Maringá",
	"OLT-MGF-FH-GUAIAPO-01":                "Maringá",
	"OLT-MGF-FH-GUAIAPO-04":                "Maringá",
	"OLT-MGF-FH-ORIENTAL-06":               "Maringá",

	// Marialva
	"OLT-MRV-PARKS-MARIALVA-50": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-49": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-48": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-47": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-46": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-45": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-44": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-43": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-42": "Marialva",
	"OLT-MRV-PARKS-MARIALVA-41": "Marialva",
	"OLT-MRV-FH-MARIALVA-07":    "Marialva",

	"OLT-AVL-PARKS-ALVORADA-DO-SUL-38": "Alvorada do Sul",
	"OLT-AVL-PARKS-ALVORADA-DO-SUL-37": "Alvorada do Sul",
	"OLT-AVL-PARKS-ALVORADA-DO-SUL-36": "Alvorada do Sul",
	"OLT-AVL-PARKS-ALVORADA-DO-SUL-35": "Alvorada do Sul",
	"OLT-AVL-PARKS-ALVORADA-DO-SUL-34": "Alvorada do Sul",

	"OLT-PRU-PARKS-PORECATU-CONDOMINIO-33": "Porecatu",
	"OLT-PRU-PARKS-PORECATU-CONDOMINIO-32": "Porecatu",
	"OLT-PRU-PARKS-PORECATU-31":            "Porecatu",
	"OLT-PRU-PARKS-PORECATU-30":            "Porecatu",
	"OLT-PRU-PARKS-PORECATU-29":            "Porecatu",
	"OLT-PRU-PARKS-PORECATU-28":            "Porecatu",
	"OLT-PRU-PARKS-PORECATU-27":            "Porecatu",

	"OLT-SDY-PARKS-SABAUDIA-26": "Sabáudia",
	"OLT-SDY-PARKS-SABAUDIA-25": "Sabáudia",
	"OLT-SDY-PARKS-SABAUDIA-24": "Sabáudia",
	"OLT-SDY-PARKS-SABAUDIA-23": "Sabáudia",

	"OLT-FOS-PARKS-FLORESTOPOLIS-22": "Florestópolis",
	"OLT-FOS-PARKS-FLORESTOPOLIS-21": "Florestópolis",
	"OLT-FOS-PARKS-FLORESTOPOLIS-20": "Florestópolis",
	"OLT-FOS-PARKS-FLORESTOPOLIS-19": "Florestópolis",
	"OLT-FOS-PARKS-FLORESTOPOLIS-18": "Florestópolis",
	"OLT-FOS-PARKS-FLORESTOPOLIS-17": "Florestópolis",

	"OLT-PFI-PARKS-PRADO-FERREIRA-15": "Prado Ferreira",
	"OLT-PFI-PARKS-PRADO-FERREIRA-14": "Prado Ferreira",
	"OLT-PFI-PARKS-PRADO-FERREIRA-13": "Prado Ferreira",

	"OLT-SWW-PARKS-SARANDI-03":   "Sarandi",
	"OLT-SWW-FH-SARANDI-05":      "Sarandi",
	"OLT-SWW-FH-SARANDI-08-POP2": "Sarandi",
	"OLT-SWW-FH-SARANDI-09-POP3": "Sarandi",

	"OLT-APU-FH-COLONIAL": "Apucarana",
	"OLT-APU-FH-CUBA":     "Apucarana",
	"OLT-APU-FH-VENEZA":   "Apucarana",
	"OLT-APU-FH-WIZARD":   "Apucarana",
	"OLT-APU-FH-SEDE":     "Apucarana",

	"OLT-APS-FH-AGUIA":  "Arapongas",
	"OLT-APS-FH-UNOPAR": "Arapongas",

	"OLT-CFN-FH-CALIFORNIA":        "Califórnia",
	"OLT-CMB-FH-CAMBIRA":           "Cambira",
	"OLT-IOR-FH-IBIPORA":           "Ibiporã",
	"OLT-MLA-FH-MARILANDIA-DO-SUL": "Marilândia do Sul",
	"OLT-MQS-FH-MAUA-DA-SERRA":     "Mauá da Serra",

	"OLT-RLA-FH-POP-01": "Rolândia",
	"OLT-RLA-FH-POP-02": "Rolândia",
	"OLT-RLA-FH-POP-03": "Rolândia",

	"OLT-ATG-FH-ASTORGA-02":   "Astorga",
	"OLT-JGP-FH-JAGUAPITA-03": "Jaguapitã",

	"OLT-PARKS-BANCADA": "Laboratório",
	"OLT-ZTE-BANCADA":   "Laboratório",
}
